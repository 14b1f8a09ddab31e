package handler

import (
	"log/slog"
	"net/http"

	"credit-engine/internal/api/handler/dto"
	"credit-engine/internal/domain/loan"
)

type LoanHandler struct {
	service loan.LoanService
	logger  *slog.Logger
}

func NewLoanHandler(s loan.LoanService, l *slog.Logger) *LoanHandler {
	if s == nil {
		panic("loan service cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	return &LoanHandler{
		service: s,
		logger:  l.With("component", "LoanHandler"),
	}
}

func (h *LoanHandler) decodeLoanRequest(w http.ResponseWriter, r *http.Request) (*dto.LoanRequest, bool) {
	var req dto.LoanRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, invalidBody(err))
		return nil, false
	}
	if err := req.Validate(); err != nil {
		h.logger.WarnContext(r.Context(), "Loan request failed validation", slog.Any("error", err))
		respondError(w, err)
		return nil, false
	}
	return &req, true
}

// CheckEligibility scores a loan application without persisting anything.
//
// @Summary Check loan eligibility
// @Description Scores the customer's history and returns the approval decision, the corrected interest rate and the monthly installment. Rejections are returned with status 200.
// @Tags Loans
// @Accept json
// @Produce json
// @Param request body dto.LoanRequest true "Loan application"
// @Success 200 {object} dto.EligibilityResponse "Eligibility decision"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /check-eligibility [post]
// @Security BearerAuth
func (h *LoanHandler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeLoanRequest(w, r)
	if !ok {
		return
	}

	eval, err := h.service.CheckEligibility(r.Context(), req.ToApplication())
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewEligibilityResponse(eval))
}

// CreateLoan evaluates an application and books the loan when approved.
//
// @Summary Create a loan
// @Description Re-runs the eligibility decision under a lock on the customer row and creates the loan when approved. Rejections are returned with status 200 and a null loan_id.
// @Tags Loans
// @Accept json
// @Produce json
// @Param request body dto.LoanRequest true "Loan application"
// @Success 200 {object} dto.CreateLoanResponse "Loan decision"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /create-loan [post]
// @Security BearerAuth
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeLoanRequest(w, r)
	if !ok {
		return
	}

	decision, err := h.service.CreateLoan(r.Context(), req.ToApplication())
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewCreateLoanResponse(decision))
}

// ViewLoan returns a loan with its owner.
//
// @Summary View a loan
// @Tags Loans
// @Produce json
// @Param loanID path int true "Loan ID" Minimum(1)
// @Success 200 {object} dto.LoanDetailResponse "Loan details"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /view-loan/{loanID} [get]
// @Security BearerAuth
func (h *LoanHandler) ViewLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := idFromURL(r, "loanID")
	if err != nil {
		respondError(w, err)
		return
	}

	details, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewLoanDetailResponse(details))
}

// ViewCustomerLoans lists a customer's loans with their remaining repayments.
//
// @Summary View a customer's loans
// @Tags Loans
// @Produce json
// @Param customerID path int true "Customer ID" Minimum(1)
// @Success 200 {array} dto.LoanSummaryResponse "Customer loans"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /view-loans/{customerID} [get]
// @Security BearerAuth
func (h *LoanHandler) ViewCustomerLoans(w http.ResponseWriter, r *http.Request) {
	customerID, err := idFromURL(r, "customerID")
	if err != nil {
		respondError(w, err)
		return
	}

	loans, err := h.service.ListCustomerLoans(r.Context(), customerID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewLoanSummaryList(loans))
}
