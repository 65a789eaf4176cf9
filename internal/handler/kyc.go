package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/mmeshcher/octa-payouts/internal/service"
)

const (
	maxKYCRequestSize  = 12 << 20
	maxKYCDocumentSize = 5 << 20
	kycFormMemory      = 8 << 20
)

// SubmitKYC принимает multipart-форму заявки KYC со сканами документов.
func (h *Handler) SubmitKYC(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxKYCRequestSize)
	if err := r.ParseMultipartForm(kycFormMemory); err != nil {
		h.writeError(w, invalidRequest("expected multipart form up to 12MB"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	aadhaarImage, err := readFormFile(r, "aadhaar_image")
	if err != nil {
		h.writeError(w, err)
		return
	}
	panImage, err := readFormFile(r, "pancard_image")
	if err != nil {
		h.writeError(w, err)
		return
	}

	rec, err := h.service.SubmitKYC(r.Context(), p, service.KYCSubmission{
		FullName:      r.FormValue("full_name"),
		Email:         r.FormValue("email"),
		Address:       r.FormValue("address"),
		City:          r.FormValue("city"),
		State:         r.FormValue("state"),
		AadhaarNumber: r.FormValue("aadhaar_no"),
		PANNumber:     r.FormValue("pan_number"),
		AccountNumber: r.FormValue("account_no"),
		Bank:          r.FormValue("bank"),
		IFSC:          r.FormValue("ifsc"),
		AadhaarImage:  aadhaarImage,
		PANImage:      panImage,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeOK(w, http.StatusCreated, "KYC submitted successfully", toKYCResponse(rec))
}

// GetKYC возвращает заявку KYC текущего пользователя.
func (h *Handler) GetKYC(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	rec, err := h.service.GetKYC(r.Context(), p)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "KYC retrieved successfully", toKYCResponse(rec))
}

func readFormFile(r *http.Request, field string) ([]byte, error) {
	f, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, invalidRequest("invalid " + field)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxKYCDocumentSize+1))
	if err != nil {
		return nil, invalidRequest("invalid " + field)
	}
	if len(data) > maxKYCDocumentSize {
		return nil, invalidRequest(field + " exceeds 5MB")
	}
	return data, nil
}
