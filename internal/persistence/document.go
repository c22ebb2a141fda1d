package persistence

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/deweiiss/sportMe-sub000/internal/domain"
)

// PlanDocument is the serialised form of a training plan as it is stored in
// files and key-value stores. Weeks may mix legacy and structured days.
type PlanDocument struct {
	ID        string          `json:"id"`
	AthleteID string          `json:"athlete_id"`
	Title     string          `json:"title"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date,omitempty"`
	Weeks     json.RawMessage `json:"weeks"`
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

const dateLayout = "2006-01-02"

// NewPlanDocument encodes plan.
func NewPlanDocument(plan domain.TrainingPlan) (PlanDocument, error) {
	weeks, err := EncodeSchedule(plan.Weeks)
	if err != nil {
		return PlanDocument{}, err
	}
	doc := PlanDocument{
		ID:        plan.ID,
		AthleteID: plan.AthleteID,
		Title:     plan.Title,
		StartDate: plan.StartDate.Format(dateLayout),
		Weeks:     weeks,
		Version:   plan.Version,
		CreatedAt: plan.CreatedAt,
		UpdatedAt: plan.UpdatedAt,
	}
	if !plan.EndDate.IsZero() {
		doc.EndDate = plan.EndDate.Format(dateLayout)
	}
	return doc, nil
}

// Plan decodes the document. Dates accept YYYY-MM-DD or RFC 3339.
func (d PlanDocument) Plan() (domain.TrainingPlan, error) {
	start, err := parseDate(d.StartDate)
	if err != nil || start.IsZero() {
		return domain.TrainingPlan{}, fmt.Errorf("%w: start_date %q", domain.ErrMalformedPlan, d.StartDate)
	}
	end, err := parseDate(d.EndDate)
	if err != nil {
		return domain.TrainingPlan{}, fmt.Errorf("%w: end_date %q", domain.ErrMalformedPlan, d.EndDate)
	}
	weeks, err := DecodeSchedule(d.Weeks)
	if err != nil {
		return domain.TrainingPlan{}, err
	}
	return domain.TrainingPlan{
		ID:        d.ID,
		AthleteID: d.AthleteID,
		Title:     d.Title,
		StartDate: start,
		EndDate:   end,
		Weeks:     weeks,
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

// ParsePlan reads a plan document from JSON.
func ParsePlan(raw []byte) (domain.TrainingPlan, error) {
	var doc PlanDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.TrainingPlan{}, fmt.Errorf("%w: %v", domain.ErrMalformedPlan, err)
	}
	return doc.Plan()
}

func parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(dateLayout, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, err
	}
	return domain.DateOf(t), nil
}
