package vapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"voicedash/internal/target"
)

var (
	ErrEmptyTargets    = errors.New("vapi: call request needs at least one target")
	ErrInvalidTarget   = errors.New("vapi: target number failed validation")
	ErrInvalidSchedule = errors.New("vapi: schedule earliestAt must not be after latestAt")
)

// ScheduleWindow instructs the provider to place the call later rather than
// immediately. If LatestAt is set, EarliestAt must not be after it.
type ScheduleWindow struct {
	EarliestAt time.Time  `json:"earliest_at"`
	LatestAt   *time.Time `json:"latest_at,omitempty"`
}

func (w ScheduleWindow) validate() error {
	if w.EarliestAt.IsZero() {
		return fmt.Errorf("%w: earliestAt is required", ErrInvalidSchedule)
	}
	if w.LatestAt != nil && w.EarliestAt.After(*w.LatestAt) {
		return ErrInvalidSchedule
	}
	return nil
}

// Wire payload types. The singular/plural split is a provider contract:
// one target uses "customer", two or more use "customers". Keeping two
// structs makes the shape switch a type decision, not a runtime branch deep
// inside serialization.
type customerPayload struct {
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
}

type schedulePlanPayload struct {
	EarliestAt string `json:"earliestAt"`
	LatestAt   string `json:"latestAt,omitempty"`
}

type singleCallPayload struct {
	AssistantID   string               `json:"assistantId"`
	PhoneNumberID string               `json:"phoneNumberId"`
	Customer      customerPayload      `json:"customer"`
	SchedulePlan  *schedulePlanPayload `json:"schedulePlan,omitempty"`
}

type bulkCallPayload struct {
	AssistantID   string               `json:"assistantId"`
	PhoneNumberID string               `json:"phoneNumberId"`
	Customers     []customerPayload    `json:"customers"`
	SchedulePlan  *schedulePlanPayload `json:"schedulePlan,omitempty"`
}

// CallRequest is an immutable, already-encoded outbound call request.
// Built fresh per dispatch and never mutated afterward.
type CallRequest struct {
	AssistantID   string
	PhoneNumberID string
	Targets       []target.CallTarget
	Schedule      *ScheduleWindow

	body []byte
}

// Body returns the encoded JSON payload.
func (r CallRequest) Body() []byte { return r.body }

// BuildCallRequest assembles and encodes a provider call request.
//
// Every string field of every target is sanitized (non-printables stripped,
// whitespace trimmed) before inclusion so encoding corruption never propagates
// into the outbound request. Structural problems (no targets, invalid number,
// bad schedule) fail here, synchronously, before any network activity.
func BuildCallRequest(assistantID, phoneNumberID string, targets []target.CallTarget, window *ScheduleWindow) (CallRequest, error) {
	if len(targets) == 0 {
		return CallRequest{}, ErrEmptyTargets
	}
	if window != nil {
		if err := window.validate(); err != nil {
			return CallRequest{}, err
		}
	}

	assistantID = sanitize(assistantID)
	phoneNumberID = sanitize(phoneNumberID)

	clean := make([]target.CallTarget, len(targets))
	customers := make([]customerPayload, len(targets))
	for i, t := range targets {
		c := target.CallTarget{
			Number: sanitize(t.Number),
			Name:   sanitize(t.Name),
			Email:  sanitize(t.Email),
		}
		if !target.ValidPhoneNumber(c.Number) {
			return CallRequest{}, fmt.Errorf("%w: %q", ErrInvalidTarget, c.Number)
		}
		clean[i] = c
		customers[i] = customerPayload{Number: c.Number, Name: c.Name, Email: c.Email}
	}

	// schedulePlan is omitted entirely when no window is given; absence, not
	// null, is the provider's contract for "call now".
	var plan *schedulePlanPayload
	if window != nil {
		plan = &schedulePlanPayload{EarliestAt: window.EarliestAt.UTC().Format(time.RFC3339)}
		if window.LatestAt != nil {
			plan.LatestAt = window.LatestAt.UTC().Format(time.RFC3339)
		}
	}

	var payload any
	if len(customers) == 1 {
		payload = singleCallPayload{AssistantID: assistantID, PhoneNumberID: phoneNumberID, Customer: customers[0], SchedulePlan: plan}
	} else {
		payload = bulkCallPayload{AssistantID: assistantID, PhoneNumberID: phoneNumberID, Customers: customers, SchedulePlan: plan}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return CallRequest{}, &Error{Kind: KindEncoding, Message: fmt.Sprintf("encode call payload: %v", err)}
	}

	return CallRequest{
		AssistantID:   assistantID,
		PhoneNumberID: phoneNumberID,
		Targets:       clean,
		Schedule:      window,
		body:          body,
	}, nil
}

func sanitize(s string) string {
	return strings.TrimSpace(target.StripNonPrintable(s))
}
