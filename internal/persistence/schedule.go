// Package persistence holds helpers shared by the plan stores.
package persistence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
)

type storedWeek struct {
	Focus string            `json:"focus,omitempty"`
	Days  []json.RawMessage `json:"days"`
}

// EncodeSchedule serialises plan weeks in the structured form.
func EncodeSchedule(weeks []domain.Week) ([]byte, error) {
	if weeks == nil {
		weeks = []domain.Week{}
	}
	return json.Marshal(weeks)
}

// DecodeSchedule parses a stored schedule. Days stored as strings use the
// legacy pipe-delimited record and are converted to structured slots.
func DecodeSchedule(raw []byte) ([]domain.Week, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: schedule missing", domain.ErrMalformedPlan)
	}
	var stored []storedWeek
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPlan, err)
	}

	weeks := make([]domain.Week, len(stored))
	for w, sw := range stored {
		days := make([]domain.Slot, len(sw.Days))
		for d, rawDay := range sw.Days {
			slot, err := decodeDay(rawDay)
			if err != nil {
				return nil, fmt.Errorf("%w: week %d day %d: %v", domain.ErrMalformedPlan, w, d, err)
			}
			days[d] = slot
		}
		weeks[w] = domain.Week{Focus: sw.Focus, Days: days}
	}
	return weeks, nil
}

func decodeDay(raw json.RawMessage) (domain.Slot, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var record string
		if err := json.Unmarshal(raw, &record); err != nil {
			return domain.Slot{}, err
		}
		return ParseLegacyDay(record)
	}
	var slot domain.Slot
	if err := json.Unmarshal(raw, &slot); err != nil {
		return domain.Slot{}, err
	}
	return slot, nil
}

// ParseLegacyDay converts a pipe-delimited day record of the form
//
//	title|category|planned_minutes|rest_flag[|KIND~zone~value~unit;...]
//
// into a slot. Empty minutes and zones mean unset.
func ParseLegacyDay(record string) (domain.Slot, error) {
	fields := strings.Split(record, "|")
	if len(fields) < 4 || len(fields) > 5 {
		return domain.Slot{}, fmt.Errorf("legacy day %q: want 4 or 5 fields, got %d", record, len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	slot := domain.Slot{Title: fields[0], Category: fields[1]}
	if fields[2] != "" {
		minutes, err := strconv.Atoi(fields[2])
		if err != nil || minutes < 0 {
			return domain.Slot{}, fmt.Errorf("legacy day %q: bad planned minutes %q", record, fields[2])
		}
		slot.PlannedDuration = minutes
	}
	rest, err := parseFlag(fields[3])
	if err != nil {
		return domain.Slot{}, fmt.Errorf("legacy day %q: %w", record, err)
	}
	slot.IsRestDay = rest

	if len(fields) == 5 && fields[4] != "" {
		for _, part := range strings.Split(fields[4], ";") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			seg, err := parseLegacySegment(part)
			if err != nil {
				return domain.Slot{}, fmt.Errorf("legacy day %q: %w", record, err)
			}
			slot.Segments = append(slot.Segments, seg)
		}
	}
	return slot, nil
}

func parseLegacySegment(part string) (domain.Segment, error) {
	bits := strings.Split(part, "~")
	if len(bits) != 4 {
		return domain.Segment{}, fmt.Errorf("segment %q: want KIND~zone~value~unit", part)
	}
	seg := domain.Segment{
		Kind: domain.SegmentKind(strings.ToUpper(strings.TrimSpace(bits[0]))),
		Unit: strings.TrimSpace(bits[3]),
	}
	switch seg.Kind {
	case domain.SegmentWarmup, domain.SegmentMain, domain.SegmentInterval, domain.SegmentCooldown:
	default:
		return domain.Segment{}, fmt.Errorf("segment %q: unknown kind", part)
	}
	if z := strings.TrimSpace(bits[1]); z != "" {
		zone, err := strconv.Atoi(z)
		if err != nil || zone < 1 || zone > 5 {
			return domain.Segment{}, fmt.Errorf("segment %q: zone must be 1-5", part)
		}
		seg.Zone = zone
	}
	if v := strings.TrimSpace(bits[2]); v != "" {
		value, err := strconv.ParseFloat(v, 64)
		if err != nil || value < 0 {
			return domain.Segment{}, fmt.Errorf("segment %q: bad duration", part)
		}
		seg.Duration = value
	}
	return seg, nil
}

func parseFlag(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "rest":
		return true, nil
	case "0", "false", "no", "":
		return false, nil
	}
	return false, fmt.Errorf("bad rest flag %q", v)
}
