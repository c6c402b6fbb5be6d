package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Switch is a stored per-organization feature gate.
type Switch struct {
	Organization string `json:"organization"`
	Feature      string `json:"feature"`
	Active       bool   `json:"active"`
	Note         string `json:"note,omitempty"`

	// Stamped by SetSwitch. Zero for rows written before version 2.
	CreationDate time.Time `json:"creation_date,omitzero"`
	LastModified time.Time `json:"last_modified,omitzero"`
}

// SetSwitch creates or replaces the switch for (organization, feature).
// creation_date is kept across replacements, last_modified is set on every
// write. Timestamps passed in sw are ignored.
func (s *Store) SetSwitch(ctx context.Context, sw Switch) error {
	if sw.Organization == "" || sw.Feature == "" {
		return fmt.Errorf("set switch: organization and feature are required")
	}
	stamp := formatStamp(s.now())
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO switches (organization, feature, active, note, creation_date, last_modified)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(organization, feature) DO UPDATE SET
			active = excluded.active,
			note = excluded.note,
			creation_date = CASE WHEN creation_date = '' THEN excluded.creation_date ELSE creation_date END,
			last_modified = excluded.last_modified
	`, sw.Organization, sw.Feature, sw.Active, sw.Note, stamp, stamp)
	if err != nil {
		return fmt.Errorf("set switch %s/%s: %w", sw.Organization, sw.Feature, err)
	}
	return nil
}

// GetSwitch loads one switch. Returns a NotFoundError when it is not set.
func (s *Store) GetSwitch(ctx context.Context, organization, feature string) (Switch, error) {
	sw := Switch{Organization: organization, Feature: feature}
	var created, modified string
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT active, note, creation_date, last_modified FROM switches
		WHERE organization = ? AND feature = ?
	`, organization, feature).Scan(&sw.Active, &sw.Note, &created, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return Switch{}, &NotFoundError{Kind: "switch", Key: organization + "/" + feature}
	}
	if err == nil {
		err = sw.setStamps(created, modified)
	}
	if err != nil {
		return Switch{}, fmt.Errorf("get switch %s/%s: %w", organization, feature, err)
	}
	return sw, nil
}

// ListSwitches returns all switches of an organization ordered by feature.
// An empty organization lists every switch.
func (s *Store) ListSwitches(ctx context.Context, organization string) ([]Switch, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT organization, feature, active, note, creation_date, last_modified FROM switches
		WHERE ? = '' OR organization = ?
		ORDER BY organization COLLATE BINARY ASC, feature COLLATE BINARY ASC
	`, organization, organization)
	if err != nil {
		return nil, fmt.Errorf("list switches: %w", err)
	}
	defer rows.Close()

	switches := []Switch{}
	for rows.Next() {
		var sw Switch
		var created, modified string
		if err := rows.Scan(&sw.Organization, &sw.Feature, &sw.Active, &sw.Note, &created, &modified); err != nil {
			return nil, fmt.Errorf("list switches: %w", err)
		}
		if err := sw.setStamps(created, modified); err != nil {
			return nil, fmt.Errorf("list switches: %w", err)
		}
		switches = append(switches, sw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate switches: %w", err)
	}
	return switches, nil
}

func formatStamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseStamp(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, v)
}

func (sw *Switch) setStamps(created, modified string) error {
	var err error
	if sw.CreationDate, err = parseStamp(created); err != nil {
		return fmt.Errorf("creation_date: %w", err)
	}
	if sw.LastModified, err = parseStamp(modified); err != nil {
		return fmt.Errorf("last_modified: %w", err)
	}
	return nil
}
