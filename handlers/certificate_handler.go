package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"stimmaAPI/middleware"
	"stimmaAPI/services"
)

type CertificateHandler struct {
	certificateService *services.CertificateService
}

func NewCertificateHandler(certificateService *services.CertificateService) *CertificateHandler {
	return &CertificateHandler{certificateService: certificateService}
}

// GetCertificates lists the authenticated user's certificates.
func (h *CertificateHandler) GetCertificates(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	certs, err := h.certificateService.GetUserCertificates(ctx, userID)
	if err != nil {
		log.Printf("GetCertificates failed for user %s: %v", userID, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load certificates")
		return
	}

	respondWithJSON(w, http.StatusOK, certs)
}

// VerifyCertificate is public: anyone holding a certificate number can
// check it.
func (h *CertificateHandler) VerifyCertificate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	number := r.URL.Query().Get("number")
	if number == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'number' is required")
		return
	}

	cert, err := h.certificateService.GetCertificateByNumber(ctx, number)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to verify certificate")
		return
	}
	if cert == nil {
		respondWithError(w, http.StatusNotFound, "Certificate not found")
		return
	}

	respondWithJSON(w, http.StatusOK, cert)
}

// GetCertificateQR returns a QR code for the verification page as a
// base64 PNG. Public like the verification endpoint itself.
func (h *CertificateHandler) GetCertificateQR(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	number := r.URL.Query().Get("number")
	if number == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'number' is required")
		return
	}

	cert, err := h.certificateService.GetCertificateByNumber(ctx, number)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to look up certificate")
		return
	}
	if cert == nil {
		respondWithError(w, http.StatusNotFound, "Certificate not found")
		return
	}

	qr, err := h.certificateService.GenerateVerificationQR(cert.CertificateNumber)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to generate QR code")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"certificate_number": cert.CertificateNumber,
		"qr_code":            qr,
	})
}
