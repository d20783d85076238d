package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/internal/reviews"
	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
)

type stubReviewService struct {
	submitted  reviews.SubmitInput
	listInput  reviews.ListInput
	submitErr  error
	deletedFor uuid.UUID
}

func (s *stubReviewService) Submit(_ context.Context, reviewerID, revieweeID uuid.UUID, input reviews.SubmitInput) (*reviews.SubmitResult, error) {
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	s.submitted = input
	return &reviews.SubmitResult{
		Review:      reviews.ReviewDTO{ReviewerID: reviewerID, RevieweeID: revieweeID, Rating: input.Rating},
		Rating:      float64(input.Rating),
		RatingCount: 1,
	}, nil
}

func (s *stubReviewService) Delete(_ context.Context, _, revieweeID uuid.UUID) error {
	s.deletedFor = revieweeID
	return nil
}

func (s *stubReviewService) List(_ context.Context, input reviews.ListInput) (*reviews.ListResult, error) {
	s.listInput = input
	return &reviews.ListResult{Reviews: []reviews.ReviewDTO{}}, nil
}

func TestReviewsSubmit(t *testing.T) {
	svc := &stubReviewService{}
	reviewee := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"rating":4,"comment":"quick handoff"}`))
	req = withParams(authed(req, uuid.New()), "userId", reviewee.String())
	resp := httptest.NewRecorder()
	ReviewsSubmit(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	var out reviews.SubmitResult
	decodeData(t, resp, &out)
	if out.RatingCount != 1 || out.Review.RevieweeID != reviewee {
		t.Fatalf("unexpected result %+v", out)
	}
	if svc.submitted.Comment != "quick handoff" {
		t.Fatalf("comment not forwarded: %+v", svc.submitted)
	}
}

func TestReviewsSubmitRatingBounds(t *testing.T) {
	for _, body := range []string{`{"rating":0}`, `{"rating":6}`, `{}`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req = withParams(authed(req, uuid.New()), "userId", uuid.NewString())
		resp := httptest.NewRecorder()
		ReviewsSubmit(&stubReviewService{}, nil).ServeHTTP(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400 got %d", body, resp.Code)
		}
	}
}

func TestReviewsSubmitSelfReview(t *testing.T) {
	svc := &stubReviewService{submitErr: pkgerrors.New(pkgerrors.CodeValidation, "cannot review yourself")}
	userID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"rating":5}`))
	req = withParams(authed(req, userID), "userId", userID.String())
	resp := httptest.NewRecorder()
	ReviewsSubmit(svc, nil).ServeHTTP(resp, req)
	if code := decodeErrorCode(t, resp); code != string(pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION got %s", code)
	}
}

func TestReviewsListPagination(t *testing.T) {
	svc := &stubReviewService{}
	reviewee := uuid.New()
	req := withParams(authed(httptest.NewRequest(http.MethodGet, "/?limit=10", nil), uuid.New()), "userId", reviewee.String())
	resp := httptest.NewRecorder()
	ReviewsList(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.listInput.RevieweeID != reviewee || svc.listInput.Params.Limit != 10 {
		t.Fatalf("unexpected list input %+v", svc.listInput)
	}
}

func TestReviewsDelete(t *testing.T) {
	svc := &stubReviewService{}
	reviewee := uuid.New()
	req := withParams(authed(httptest.NewRequest(http.MethodDelete, "/", nil), uuid.New()), "userId", reviewee.String())
	resp := httptest.NewRecorder()
	ReviewsDelete(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || svc.deletedFor != reviewee {
		t.Fatalf("expected delete for %s, got status %d id %s", reviewee, resp.Code, svc.deletedFor)
	}
}
