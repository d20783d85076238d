package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/internal/cart"
	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
)

type stubCartService struct {
	addInput     cart.AddInput
	saved        *bool
	bargainInput cart.BargainInput
	accept       *bool
	err          error
}

func (s *stubCartService) AddOrUpdate(_ context.Context, _ uuid.UUID, input cart.AddInput) (*cart.LineDTO, error) {
	s.addInput = input
	if s.err != nil {
		return nil, s.err
	}
	return &cart.LineDTO{ID: uuid.New(), ItemID: input.ItemID, Quantity: input.Quantity}, nil
}

func (s *stubCartService) List(context.Context, uuid.UUID) (*cart.CartDTO, error) {
	return &cart.CartDTO{Items: []cart.LineDTO{}, SavedForLater: []cart.LineDTO{}}, s.err
}

func (s *stubCartService) Remove(context.Context, uuid.UUID, uuid.UUID) error {
	return s.err
}

func (s *stubCartService) SaveForLater(_ context.Context, _ uuid.UUID, _ uuid.UUID, saved bool) error {
	s.saved = &saved
	return s.err
}

func (s *stubCartService) Bargain(_ context.Context, _ uuid.UUID, lineID uuid.UUID, input cart.BargainInput) (*cart.LineDTO, error) {
	s.bargainInput = input
	if s.err != nil {
		return nil, s.err
	}
	return &cart.LineDTO{ID: lineID}, nil
}

func (s *stubCartService) RespondBargain(_ context.Context, _ uuid.UUID, lineID uuid.UUID, accept bool) (*cart.LineDTO, error) {
	s.accept = &accept
	if s.err != nil {
		return nil, s.err
	}
	return &cart.LineDTO{ID: lineID}, nil
}

func (s *stubCartService) IncomingBargains(context.Context, uuid.UUID) ([]cart.IncomingBargainDTO, error) {
	return []cart.IncomingBargainDTO{}, s.err
}

func TestCartAddValidatesBody(t *testing.T) {
	svc := &stubCartService{}
	itemID := uuid.New()

	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/cart", strings.NewReader(`{"item_id":"`+itemID.String()+`","quantity":2}`)), uuid.New())
	resp := httptest.NewRecorder()
	CartAdd(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.addInput.ItemID != itemID || svc.addInput.Quantity != 2 {
		t.Fatalf("unexpected add input %+v", svc.addInput)
	}

	bad := authed(httptest.NewRequest(http.MethodPost, "/api/v1/cart", strings.NewReader(`{"item_id":"`+itemID.String()+`","quantity":0}`)), uuid.New())
	badResp := httptest.NewRecorder()
	CartAdd(svc, nil).ServeHTTP(badResp, bad)
	if badResp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero quantity got %d", badResp.Code)
	}
}

func TestCartSaveForLaterDefaultsToSaved(t *testing.T) {
	svc := &stubCartService{}
	lineID := uuid.New()

	req := withParams(authed(httptest.NewRequest(http.MethodPost, "/", nil), uuid.New()), "lineId", lineID.String())
	CartSaveForLater(svc, nil).ServeHTTP(httptest.NewRecorder(), req)
	if svc.saved == nil || !*svc.saved {
		t.Fatalf("expected saved=true without body")
	}

	restore := withParams(authed(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"saved":false}`)), uuid.New()), "lineId", lineID.String())
	CartSaveForLater(svc, nil).ServeHTTP(httptest.NewRecorder(), restore)
	if svc.saved == nil || *svc.saved {
		t.Fatalf("expected saved=false from body")
	}
}

func TestCartBargainPassesProposal(t *testing.T) {
	svc := &stubCartService{}
	lineID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"price_cents":750,"message":"cash today"}`))
	req = withParams(authed(req, uuid.New()), "lineId", lineID.String())
	resp := httptest.NewRecorder()
	CartBargain(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.bargainInput.PriceCents != 750 || svc.bargainInput.Message != "cash today" {
		t.Fatalf("unexpected bargain input %+v", svc.bargainInput)
	}
}

func TestBargainsRespondRequiresDecision(t *testing.T) {
	svc := &stubCartService{}
	lineID := uuid.New()

	missing := withParams(authed(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)), uuid.New()), "lineId", lineID.String())
	missingResp := httptest.NewRecorder()
	BargainsRespond(svc, nil).ServeHTTP(missingResp, missing)
	if missingResp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", missingResp.Code)
	}

	reject := withParams(authed(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"accept":false}`)), uuid.New()), "lineId", lineID.String())
	rejectResp := httptest.NewRecorder()
	BargainsRespond(svc, nil).ServeHTTP(rejectResp, reject)
	if rejectResp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rejectResp.Code)
	}
	if svc.accept == nil || *svc.accept {
		t.Fatalf("expected explicit reject to pass through")
	}
}

func TestBargainsRespondStateConflict(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "bargain is not pending")}
	lineID := uuid.New()
	req := withParams(authed(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"accept":true}`)), uuid.New()), "lineId", lineID.String())
	resp := httptest.NewRecorder()
	BargainsRespond(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if got := decodeErrorCode(t, resp); got != string(pkgerrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT got %s", got)
	}
}
