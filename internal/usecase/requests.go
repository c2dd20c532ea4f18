package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"credbroker/internal/domain"
)

const DefaultRequestSLA = 120 * time.Second

// RequestTracker records caller-created credential requests and their
// status transitions, stamping each into the ledger. The broker never
// mints requests itself.
type RequestTracker struct {
	mu       sync.Mutex
	requests map[string]domain.CredentialRequest
	ledger   Ledger
	sla      time.Duration
	clock    Clock
}

func NewRequestTracker(ledger Ledger, sla time.Duration, clock Clock) *RequestTracker {
	if sla <= 0 {
		sla = DefaultRequestSLA
	}
	if clock == nil {
		clock = time.Now
	}
	return &RequestTracker{
		requests: make(map[string]domain.CredentialRequest),
		ledger:   ledger,
		sla:      sla,
		clock:    clock,
	}
}

// Create registers a new request and stamps CREDENTIAL_REQUEST. The
// request id must already be well-formed; duplicates are rejected.
func (t *RequestTracker) Create(ctx context.Context, req domain.CredentialRequest) (domain.CredentialRequest, error) {
	if err := domain.ValidateRequestID(req.ReqID); err != nil {
		return domain.CredentialRequest{}, err
	}
	now := t.clock().UTC()
	req.Status = domain.RequestPending
	if req.CreatedTS.IsZero() {
		req.CreatedTS = now
	}
	req.ExpiresTS = req.CreatedTS.Add(t.sla)

	t.mu.Lock()
	if _, exists := t.requests[req.ReqID]; exists {
		t.mu.Unlock()
		return domain.CredentialRequest{}, fmt.Errorf("%w: duplicate req_id %s", domain.ErrInvalidRequestID, req.ReqID)
	}
	t.requests[req.ReqID] = req
	t.mu.Unlock()

	_, err := t.ledger.AppendEvent(domain.EventCredentialRequest, map[string]any{
		"req_id":       req.ReqID,
		"requester_id": req.RequesterID,
		"vault_id":     req.VaultID,
		"path":         req.Path,
		"reason":       req.Reason,
		"emergency":    req.Emergency,
		"timestamp":    now.Format(time.RFC3339Nano),
	})
	if err != nil {
		// Without its CREDENTIAL_REQUEST entry the request never
		// happened; drop it so a retry is not a duplicate.
		t.mu.Lock()
		delete(t.requests, req.ReqID)
		t.mu.Unlock()
		return domain.CredentialRequest{}, fmt.Errorf("stamping request %s: %w", req.ReqID, err)
	}
	return req, nil
}

// Get returns the request, flipping it to EXPIRED when its SLA has
// lapsed without a terminal status.
func (t *RequestTracker) Get(reqID string) (domain.CredentialRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.requests[reqID]
	if !ok {
		return domain.CredentialRequest{}, false
	}
	if req.Status == domain.RequestPending && req.Expired(t.clock().UTC()) {
		req.Status = domain.RequestExpired
		t.requests[reqID] = req
	}
	return req, true
}

// SetStatus transitions a request and stamps the transition. Terminal
// statuses stay terminal.
func (t *RequestTracker) SetStatus(ctx context.Context, reqID string, status domain.RequestStatus) (domain.CredentialRequest, error) {
	t.mu.Lock()
	req, ok := t.requests[reqID]
	if !ok {
		t.mu.Unlock()
		return domain.CredentialRequest{}, fmt.Errorf("%w: %s", domain.ErrRequestNotFound, reqID)
	}
	switch req.Status {
	case domain.RequestRetrieved, domain.RequestDenied, domain.RequestCancelled, domain.RequestExpired:
		t.mu.Unlock()
		return domain.CredentialRequest{}, fmt.Errorf("%w: request %s already %s", domain.ErrUnauthorized, reqID, req.Status)
	}
	prev := req.Status
	req.Status = status
	t.requests[reqID] = req
	t.mu.Unlock()

	eventType := domain.EventCredentialApproved
	switch status {
	case domain.RequestDenied, domain.RequestCancelled:
		eventType = domain.EventCredentialDenied
	}
	_, err := t.ledger.AppendEvent(eventType, map[string]any{
		"req_id":    reqID,
		"status":    string(status),
		"timestamp": t.clock().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		// Unstamped transitions roll back so a retry can re-apply them.
		t.mu.Lock()
		if current, ok := t.requests[reqID]; ok && current.Status == status {
			current.Status = prev
			t.requests[reqID] = current
		}
		t.mu.Unlock()
		return domain.CredentialRequest{}, fmt.Errorf("stamping status of %s: %w", reqID, err)
	}
	return req, nil
}

// ListPending returns requests still awaiting an owner decision.
func (t *RequestTracker) ListPending() []domain.CredentialRequest {
	now := t.clock().UTC()
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.CredentialRequest, 0)
	for _, req := range t.requests {
		if req.Status == domain.RequestPending && !req.Expired(now) {
			out = append(out, req)
		}
	}
	return out
}
