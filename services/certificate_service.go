package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	qrcode "github.com/skip2/go-qrcode"

	"stimmaAPI/internal/certificate"
	"stimmaAPI/internal/user"
)

const certificateNumberPrefix = "STIMMA"

// CertificateService issues and verifies course completion
// certificates. Issuance is idempotent per (user, course); the DB
// unique constraint is the source of truth, not application checks.
type CertificateService struct {
	db              *pgxpool.Pool
	verificationURL string
}

func NewCertificateService(db *pgxpool.Pool, verificationURL string) *CertificateService {
	return &CertificateService{db: db, verificationURL: verificationURL}
}

// shortID folds a UUID into a stable 4-digit display segment for the
// certificate number. Collisions are fine, uniqueness comes from the
// random suffix plus the DB constraint.
func shortID(id uuid.UUID) int {
	h := fnv.New32a()
	h.Write([]byte(id.String()))
	return int(h.Sum32() % 10000)
}

// randomHex6 returns 6 uppercase hex characters from a fresh UUID.
func randomHex6() string {
	raw := uuid.New()
	return strings.ToUpper(fmt.Sprintf("%x", raw[:3]))
}

// FormatCertificateNumber builds the printed certificate number,
// e.g. STIMMA-2026-0042-0007-9F3A1C.
func FormatCertificateNumber(year int, userID, courseID uuid.UUID, hexSuffix string) string {
	return fmt.Sprintf("%s-%d-%04d-%04d-%s", certificateNumberPrefix, year, shortID(userID), shortID(courseID), hexSuffix)
}

// FindCertificateID returns the id of the certificate on file for the
// pair, or uuid.Nil when none exists.
func (s *CertificateService) FindCertificateID(ctx context.Context, userID, courseID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM certificates WHERE user_id = $1 AND course_id = $2`, userID, courseID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, nil
		}
		return uuid.Nil, fmt.Errorf("failed to look up certificate: %w", err)
	}
	return id, nil
}

// IssueCertificate creates the certificate for the pair, snapshotting
// the current course title and user display name. The created flag is
// false when a concurrent issuance won the insert; the returned
// certificate is then the existing one.
func (s *CertificateService) IssueCertificate(ctx context.Context, userID, courseID uuid.UUID) (*certificate.Certificate, bool, error) {
	var courseTitle string
	err := s.db.QueryRow(ctx, `SELECT title FROM courses WHERE id = $1`, courseID).Scan(&courseTitle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, fmt.Errorf("course not found")
		}
		return nil, false, fmt.Errorf("failed to get course: %w", err)
	}

	u := &user.User{}
	err = s.db.QueryRow(ctx, `SELECT id, email, username, first_name, last_name FROM users WHERE id = $1`, userID).Scan(
		&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, fmt.Errorf("user not found")
		}
		return nil, false, fmt.Errorf("failed to get user: %w", err)
	}

	now := time.Now()
	number := FormatCertificateNumber(now.Year(), userID, courseID, randomHex6())

	cert := &certificate.Certificate{}
	query := `
	INSERT INTO certificates (user_id, course_id, certificate_number, course_title, user_name, completion_date)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (user_id, course_id) DO NOTHING
	RETURNING id, user_id, course_id, certificate_number, course_title, user_name, completion_date, created_at
	`

	err = s.db.QueryRow(ctx, query, userID, courseID, number, courseTitle, u.DisplayName(), now).Scan(
		&cert.ID, &cert.UserID, &cert.CourseID, &cert.CertificateNumber,
		&cert.CourseTitle, &cert.UserName, &cert.CompletionDate, &cert.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Someone else inserted first, return theirs.
			existing, err := s.getByPair(ctx, userID, courseID)
			if err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to issue certificate: %w", err)
	}

	log.Printf("Certificate: issued %s to user %s for course %s", cert.CertificateNumber, userID, courseID)
	return cert, true, nil
}

func (s *CertificateService) getByPair(ctx context.Context, userID, courseID uuid.UUID) (*certificate.Certificate, error) {
	cert := &certificate.Certificate{}
	query := `
	SELECT id, user_id, course_id, certificate_number, course_title, user_name, completion_date, created_at
	FROM certificates
	WHERE user_id = $1 AND course_id = $2
	`
	err := s.db.QueryRow(ctx, query, userID, courseID).Scan(
		&cert.ID, &cert.UserID, &cert.CourseID, &cert.CertificateNumber,
		&cert.CourseTitle, &cert.UserName, &cert.CompletionDate, &cert.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}
	return cert, nil
}

// GetUserCertificates lists the user's certificates, newest first.
func (s *CertificateService) GetUserCertificates(ctx context.Context, userID uuid.UUID) ([]*certificate.Certificate, error) {
	query := `
	SELECT id, user_id, course_id, certificate_number, course_title, user_name, completion_date, created_at
	FROM certificates
	WHERE user_id = $1
	ORDER BY created_at DESC
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get certificates: %w", err)
	}
	defer rows.Close()

	var certs []*certificate.Certificate
	for rows.Next() {
		cert := &certificate.Certificate{}
		err := rows.Scan(
			&cert.ID, &cert.UserID, &cert.CourseID, &cert.CertificateNumber,
			&cert.CourseTitle, &cert.UserName, &cert.CompletionDate, &cert.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating certificates: %w", err)
	}

	return certs, nil
}

// GetCertificateByNumber looks up a certificate for public
// verification. Returns (nil, nil) when the number is not on file.
func (s *CertificateService) GetCertificateByNumber(ctx context.Context, number string) (*certificate.Certificate, error) {
	cert := &certificate.Certificate{}
	query := `
	SELECT id, user_id, course_id, certificate_number, course_title, user_name, completion_date, created_at
	FROM certificates
	WHERE certificate_number = $1
	`
	err := s.db.QueryRow(ctx, query, number).Scan(
		&cert.ID, &cert.UserID, &cert.CourseID, &cert.CertificateNumber,
		&cert.CourseTitle, &cert.UserName, &cert.CompletionDate, &cert.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}
	return cert, nil
}

// GenerateVerificationQR renders a QR code pointing at the public
// verification endpoint, returned as a base64 PNG.
func (s *CertificateService) GenerateVerificationQR(number string) (string, error) {
	url := fmt.Sprintf("%s?number=%s", s.verificationURL, number)

	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("failed to generate QR code: %w", err)
	}

	return base64.StdEncoding.EncodeToString(png), nil
}
