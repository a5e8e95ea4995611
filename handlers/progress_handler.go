package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"stimmaAPI/middleware"
	"stimmaAPI/services"
)

// ProgressHandler exposes the write side of the progress engine plus
// the dashboard reads.
type ProgressHandler struct {
	gamificationService *services.GamificationService
	dashboardService    *services.DashboardService
}

func NewProgressHandler(gamificationService *services.GamificationService, dashboardService *services.DashboardService) *ProgressHandler {
	return &ProgressHandler{
		gamificationService: gamificationService,
		dashboardService:    dashboardService,
	}
}

type completeLessonRequest struct {
	LessonID    uuid.UUID `json:"lesson_id"`
	QuizCorrect bool      `json:"quiz_correct"`
	FirstTry    bool      `json:"first_try"`
}

type completeCourseRequest struct {
	CourseID uuid.UUID `json:"course_id"`
}

func (h *ProgressHandler) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req completeLessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.LessonID == uuid.Nil {
		respondWithError(w, http.StatusBadRequest, "lesson_id is required")
		return
	}

	result, err := h.gamificationService.RecordLessonCompletion(ctx, userID, req.LessonID, req.QuizCorrect, req.FirstTry)
	if err != nil {
		log.Printf("CompleteLesson failed for user %s: %v", userID, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to record lesson completion")
		return
	}

	middleware.LessonCompletions.Inc()
	middleware.BadgesAwarded.Add(float64(len(result.NewBadges)))

	respondWithJSON(w, http.StatusOK, result)
}

func (h *ProgressHandler) CompleteCourse(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req completeCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CourseID == uuid.Nil {
		respondWithError(w, http.StatusBadRequest, "course_id is required")
		return
	}

	result, err := h.gamificationService.RecordCourseCompletion(ctx, userID, req.CourseID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("CompleteCourse failed for user %s: %v", userID, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to record course completion")
		return
	}

	if !result.AlreadyCompleted {
		middleware.CertificatesIssued.Inc()
		middleware.BadgesAwarded.Add(float64(len(result.NewBadges)))
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *ProgressHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	data, err := h.dashboardService.GetDashboardData(ctx, userID)
	if err != nil {
		log.Printf("GetDashboard failed for user %s: %v", userID, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}

	respondWithJSON(w, http.StatusOK, data)
}

func (h *ProgressHandler) GetBadges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	badges, err := h.dashboardService.GetBadges(ctx, userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load badges")
		return
	}

	respondWithJSON(w, http.StatusOK, badges)
}

func (h *ProgressHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	lb, err := h.dashboardService.GetLeaderboard(ctx, userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load leaderboard")
		return
	}

	respondWithJSON(w, http.StatusOK, lb)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Failed to marshal response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
