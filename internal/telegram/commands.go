package telegram

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"safecase/backend/internal/config"
)

var (
	ErrUsage   = errors.New("invalid command arguments")
	ErrTooLong = errors.New("argument too long")
)

// Report is the parsed argument of /report.
type Report struct {
	Region  string
	Subject string
	Details string
}

// ParseReport parses "<region> | <subject> | <details>". Details may contain
// further pipes.
func ParseReport(args string) (Report, error) {
	parts := strings.SplitN(args, "|", 3)
	if len(parts) != 3 {
		return Report{}, ErrUsage
	}
	r := Report{
		Region:  strings.TrimSpace(parts[0]),
		Subject: strings.TrimSpace(parts[1]),
		Details: strings.TrimSpace(parts[2]),
	}
	if r.Region == "" || r.Subject == "" || r.Details == "" {
		return Report{}, ErrUsage
	}
	if utf8.RuneCountInString(r.Region) > config.MaxRegionLength ||
		utf8.RuneCountInString(r.Subject) > config.MaxSubjectLength ||
		utf8.RuneCountInString(r.Details) > config.MaxDetailsLength {
		return Report{}, ErrTooLong
	}
	return r, nil
}

// ParseCaseArg splits "<case> [rest]" into the case id and the trimmed rest.
func ParseCaseArg(args string) (uint64, string, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return 0, "", ErrUsage
	}
	head, rest, _ := strings.Cut(args, " ")
	id, err := strconv.ParseUint(strings.TrimPrefix(head, "#"), 10, 64)
	if err != nil || id == 0 {
		return 0, "", ErrUsage
	}
	return id, strings.TrimSpace(rest), nil
}

// ParseSay parses "<case> <text>".
func ParseSay(args string) (uint64, string, error) {
	id, text, err := ParseCaseArg(args)
	if err != nil {
		return 0, "", err
	}
	if text == "" {
		return 0, "", ErrUsage
	}
	if utf8.RuneCountInString(text) > config.MaxContentLength {
		return 0, "", ErrTooLong
	}
	return id, text, nil
}
