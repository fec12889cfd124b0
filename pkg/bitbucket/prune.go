package bitbucket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
)

// Direction selects keys on one side of the reference time.
type Direction int

const (
	Before Direction = iota + 1
	After
)

func (d Direction) String() string {
	switch d {
	case Before:
		return "before"
	case After:
		return "after"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// KeyFilter selects deploy keys by creation and/or last-used time. When both
// Creation and LastUsed are set, creation is checked first.
type KeyFilter struct {
	Direction Direction
	Creation  bool
	LastUsed  bool
	Time      time.Time
}

// Validate checks that exactly one direction and at least one timestamp
// are selected.
func (f KeyFilter) Validate() error {
	if f.Direction != Before && f.Direction != After {
		return errors.New("you must specify one of -b or -a")
	}
	if !f.Creation && !f.LastUsed {
		return errors.New("you must specify one of -c or -l")
	}
	if f.Time.IsZero() {
		return errors.New("reference time is required")
	}
	return nil
}

// ParseTime parses a user-supplied date/time. Times without a zone are UTC.
func ParseTime(s string) (time.Time, error) {
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse datetime %q: %w", s, err)
	}
	return t, nil
}

// Match reports whether key is selected and which timestamp selected it
// ("created" or "last used").
func (f KeyFilter) Match(key DeployKey) (bool, string) {
	if f.Creation && key.CreatedOn != nil {
		if t, err := ParseTime(*key.CreatedOn); err == nil && f.crosses(t) {
			return true, "created"
		}
	}
	if f.LastUsed && key.LastUsed != nil {
		if t, err := ParseTime(*key.LastUsed); err == nil && f.crosses(t) {
			return true, "last used"
		}
	}
	return false, ""
}

func (f KeyFilter) crosses(t time.Time) bool {
	if f.Direction == Before {
		return t.Before(f.Time)
	}
	return t.After(f.Time)
}

// PruneAction describes one selected key.
type PruneAction struct {
	Workspace string
	Repo      string
	Key       DeployKey
	Reason    string
	At        time.Time
	Deleted   bool
}

// String renders the action as a one-line report.
func (a PruneAction) String() string {
	verb := "deleting"
	if !a.Deleted {
		verb = "would delete (dry run)"
	}
	return fmt.Sprintf("org='%s' repo='%s': key id '%s' %s DT '%s'; %s",
		a.Workspace, a.Repo, a.Key.ID, a.Reason, a.At.Format(time.RFC3339), verb)
}

// PruneDeployKeys deletes every deploy key of repos selected by filter and
// calls report for each one. With dryRun nothing is deleted.
func (s *Service) PruneDeployKeys(ctx context.Context, workspace string, repos []string, filter KeyFilter, dryRun bool, report func(PruneAction)) error {
	if err := filter.Validate(); err != nil {
		return err
	}

	var selected []PruneAction
	listErr := s.DeployKeys(ctx, workspace, repos, func(repo string, key DeployKey) error {
		if ok, reason := filter.Match(key); ok {
			selected = append(selected, PruneAction{
				Workspace: workspace,
				Repo:      repo,
				Key:       key,
				Reason:    reason + " " + filter.Direction.String(),
				At:        filter.Time,
			})
		}
		return nil
	})

	var errs []error
	if listErr != nil {
		errs = append(errs, listErr)
	}

	for _, action := range selected {
		if !dryRun {
			if err := s.DeleteDeployKey(ctx, workspace, action.Repo, action.Key.ID.String()); err != nil {
				errs = append(errs, err)
				continue
			}
			action.Deleted = true
		}
		if report != nil {
			report(action)
		}
	}

	return errors.Join(errs...)
}
