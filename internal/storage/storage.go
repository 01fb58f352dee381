package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"safecase/backend/internal/ledger"
	"safecase/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

// Redis channels. Each case's events go to "case:<id>".
const (
	caseChannelPrefix  = "case:"
	CaseChannelPattern = caseChannelPrefix + "*"
)

// CaseChannel returns the pub/sub channel carrying events for case id.
func CaseChannel(id uint64) string {
	return caseChannelPrefix + strconv.FormatUint(id, 10)
}

// CaseFilter narrows ListCases. Zero fields do not filter.
type CaseFilter struct {
	Region string
	Agent  string
	Status string
}

var (
	_ ledger.Journal  = (*Service)(nil)
	_ ledger.Notifier = (*Service)(nil)
)

// Service is the postgres journal and read index of the ledger, plus its
// Redis event channel. Only the process that owns the ledger writes through
// it; other readers (the admin CLI) use the read methods.
type Service struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Ctx    context.Context
	logger *zap.Logger
}

// NewStorageService Constructor. rdb may be nil for tools that never publish.
func NewStorageService(db *gorm.DB, rdb *redis.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		DB:     db,
		Redis:  rdb,
		Ctx:    context.Background(),
		logger: logger,
	}
}

// Migrate creates the ledger tables and the single scalars row.
func (s *Service) Migrate() error {
	if err := s.DB.AutoMigrate(
		&models.LedgerScalars{},
		&models.Agent{},
		&models.Case{},
		&models.MessageCount{},
		&models.Message{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	scalars := models.LedgerScalars{ID: models.LedgerScalarsID, NextCaseID: 1}
	if err := s.DB.Where("id = ?", models.LedgerScalarsID).FirstOrCreate(&scalars).Error; err != nil {
		return fmt.Errorf("failed to seed ledger scalars: %w", err)
	}
	return nil
}

// Append writes one committed ledger change in a single transaction.
func (s *Service) Append(ctx context.Context, ch ledger.Change) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ch.Coordinator != "" || ch.NextCaseID != 0 {
			updates := map[string]interface{}{}
			if ch.Coordinator != "" {
				updates["coordinator"] = string(ch.Coordinator)
			}
			if ch.NextCaseID != 0 {
				updates["next_case_id"] = ch.NextCaseID
			}
			if err := tx.Model(&models.LedgerScalars{}).
				Where("id = ?", models.LedgerScalarsID).
				Updates(updates).Error; err != nil {
				return fmt.Errorf("update scalars: %w", err)
			}
		}

		if ch.Agent != nil {
			row := agentToRow(*ch.Agent)
			if err := tx.Save(&row).Error; err != nil {
				return fmt.Errorf("save agent: %w", err)
			}
		}

		if ch.Case != nil {
			row := caseToRow(*ch.Case)
			if ch.NextCaseID != 0 {
				if err := tx.Create(&row).Error; err != nil {
					return fmt.Errorf("create case %d: %w", row.ID, err)
				}
			} else {
				var assigned interface{}
				if row.AssignedAgent != nil {
					assigned = *row.AssignedAgent
				}
				res := tx.Model(&models.Case{}).
					Where("id = ?", row.ID).
					Updates(map[string]interface{}{
						"assigned_agent": assigned,
						"status":         row.Status,
					})
				if res.Error != nil {
					return fmt.Errorf("update case %d: %w", row.ID, res.Error)
				}
				if res.RowsAffected == 0 {
					return fmt.Errorf("update case %d: %w", row.ID, ErrNotFound)
				}
			}
		}

		if ch.Message != nil {
			row := messageToRow(*ch.Message)
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("append message %d/%d: %w", row.CaseID, row.Index, err)
			}
			count, _ := ch.MessageCount()
			if err := tx.Save(&models.MessageCount{CaseID: row.CaseID, Count: count}).Error; err != nil {
				return fmt.Errorf("update message count: %w", err)
			}
		}
		return nil
	})
}

// LoadSnapshot reads the whole persisted ledger.
func (s *Service) LoadSnapshot(ctx context.Context) (ledger.Snapshot, error) {
	db := s.DB.WithContext(ctx)
	var snap ledger.Snapshot

	var scalars models.LedgerScalars
	err := db.First(&scalars, models.LedgerScalarsID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return snap, nil
	case err != nil:
		return snap, fmt.Errorf("load scalars: %w", err)
	}
	snap.NextCaseID = scalars.NextCaseID
	if scalars.Coordinator != nil {
		snap.Coordinator = ledger.Identity(*scalars.Coordinator)
	}

	var agents []models.Agent
	if err := db.Order("identity asc").Find(&agents).Error; err != nil {
		return snap, fmt.Errorf("load agents: %w", err)
	}
	for _, row := range agents {
		snap.Agents = append(snap.Agents, rowToAgent(row))
	}

	var cases []models.Case
	if err := db.Order("id asc").Find(&cases).Error; err != nil {
		return snap, fmt.Errorf("load cases: %w", err)
	}
	for _, row := range cases {
		c, err := rowToCase(row)
		if err != nil {
			return snap, err
		}
		snap.Cases = append(snap.Cases, c)
	}

	var counts []models.MessageCount
	if err := db.Find(&counts).Error; err != nil {
		return snap, fmt.Errorf("load message counts: %w", err)
	}
	snap.MessageCounts = make(map[uint64]uint64, len(counts))
	for _, row := range counts {
		snap.MessageCounts[row.CaseID] = row.Count
	}

	var messages []models.Message
	if err := db.Order("case_id asc, msg_index asc").Find(&messages).Error; err != nil {
		return snap, fmt.Errorf("load messages: %w", err)
	}
	for _, row := range messages {
		m, err := rowToMessage(row)
		if err != nil {
			return snap, err
		}
		snap.Messages = append(snap.Messages, m)
	}

	s.logger.Info("ledger snapshot loaded",
		zap.Int("agents", len(snap.Agents)),
		zap.Int("cases", len(snap.Cases)),
		zap.Int("messages", len(snap.Messages)))
	return snap, nil
}

// ListCases is the read-only index over persisted cases, ordered by id.
func (s *Service) ListCases(ctx context.Context, filter CaseFilter) ([]models.Case, error) {
	q := s.DB.WithContext(ctx).Model(&models.Case{})
	if filter.Region != "" {
		q = q.Where("region = ?", filter.Region)
	}
	if filter.Agent != "" {
		q = q.Where("assigned_agent = ?", filter.Agent)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var cases []models.Case
	if err := q.Order("id asc").Find(&cases).Error; err != nil {
		s.logger.Error("failed to list cases", zap.Error(err))
		return nil, err
	}
	return cases, nil
}

func (s *Service) GetCaseByID(ctx context.Context, id uint64) (*models.Case, error) {
	var c models.Case
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) GetAgentByID(ctx context.Context, identity string) (*models.Agent, error) {
	var a models.Agent
	err := s.DB.WithContext(ctx).Where("identity = ?", identity).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetCaseMessages returns a case's log in index order; empty for unknown cases.
func (s *Service) GetCaseMessages(ctx context.Context, caseID uint64) ([]models.Message, error) {
	var messages []models.Message
	if err := s.DB.WithContext(ctx).
		Where("case_id = ?", caseID).
		Order("msg_index asc").
		Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}
