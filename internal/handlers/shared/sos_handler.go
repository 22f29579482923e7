package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"readyaid/internal/models"
	"readyaid/internal/services"
	"readyaid/internal/utils"
	"readyaid/pkg/websocket"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SOSHandler struct {
	sosService   services.SOSService
	sessionStore services.SessionStoreService
	hub          *websocket.Hub
}

func NewSOSHandler(sosService services.SOSService, sessionStore services.SessionStoreService, hub *websocket.Hub) *SOSHandler {
	return &SOSHandler{
		sosService:   sosService,
		sessionStore: sessionStore,
		hub:          hub,
	}
}

// StartSession begins an emergency session for the authenticated user
func (h *SOSHandler) StartSession(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	result, err := h.sosService.Start(c.Request.Context(), userID)
	if err != nil {
		h.respondStartError(c, err)
		return
	}

	utils.CreatedResponse(c, "Emergency session started", result)
}

// AutoStartSession begins a sensor-triggered emergency session
func (h *SOSHandler) AutoStartSession(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	result, err := h.sosService.AutoStart(c.Request.Context(), userID)
	if err != nil {
		h.respondStartError(c, err)
		return
	}

	utils.CreatedResponse(c, "Emergency session started", result)
}

// EndSession resolves the user's active emergency session
func (h *SOSHandler) EndSession(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.sosService.End(c.Request.Context(), userID); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "SESSION_END_FAILED", "Failed to end session: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Emergency session ended", nil)
}

// GetStatus reports whether the user has an active session, with a
// valid tracking link when they do
func (h *SOSHandler) GetStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	status, err := h.sosService.Status(c.Request.Context(), userID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "STATUS_FETCH_FAILED", "Failed to get session status: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Session status retrieved", status)
}

// GetSettings returns the user's consent settings, defaults included
func (h *SOSHandler) GetSettings(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	settings, err := h.sosService.GetSettings(c.Request.Context(), userID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "SETTINGS_FETCH_FAILED", "Failed to get settings: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Settings retrieved", settings)
}

type updateSettingsRequest struct {
	ShareBloodType         bool `json:"share_blood_type"`
	ShareAllergies         bool `json:"share_allergies"`
	ShareMedicalConditions bool `json:"share_medical_conditions"`
	ShareMedications       bool `json:"share_medications"`
	ShareNotes             bool `json:"share_notes"`
	ShareAge               bool `json:"share_age"`
}

// UpdateSettings replaces the user's consent settings. Changing them
// does not alter a session already in flight.
func (h *SOSHandler) UpdateSettings(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var request updateSettingsRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	settings := &models.SOSSettings{
		UserID:                 userID,
		ShareBloodType:         request.ShareBloodType,
		ShareAllergies:         request.ShareAllergies,
		ShareMedicalConditions: request.ShareMedicalConditions,
		ShareMedications:       request.ShareMedications,
		ShareNotes:             request.ShareNotes,
		ShareAge:               request.ShareAge,
	}

	if err := h.sosService.SaveSettings(c.Request.Context(), settings); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "SETTINGS_SAVE_FAILED", "Failed to save settings: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Settings saved", settings)
}

type publicSessionView struct {
	SessionID     string               `json:"session_id"`
	Active        bool                 `json:"active"`
	StartTime     time.Time            `json:"start_time"`
	EndTime       *time.Time           `json:"end_time,omitempty"`
	Location      *models.GeoPoint     `json:"location,omitempty"`
	SharedProfile models.SharedProfile `json:"shared_profile"`
	Trigger       string               `json:"trigger"`
}

// GetPublicSession serves the unauthenticated tracking page backing a
// shared link. The access token in the query string is the only
// credential.
func (h *SOSHandler) GetPublicSession(c *gin.Context) {
	session, ok := h.authorizeViewer(c)
	if !ok {
		return
	}

	view := publicSessionView{
		SessionID:     session.ID.Hex(),
		Active:        session.Active,
		StartTime:     session.StartTime,
		EndTime:       session.EndTime,
		Location:      session.Location,
		SharedProfile: session.SharedProfile,
		Trigger:       string(session.Trigger),
	}

	utils.SuccessResponse(c, "Session retrieved", view)
}

// ServeSessionFeed upgrades a token-bearing viewer to a websocket
// subscribed to the session's live location feed
func (h *SOSHandler) ServeSessionFeed(c *gin.Context) {
	session, ok := h.authorizeViewer(c)
	if !ok {
		return
	}

	if err := h.hub.ServeViewer(c.Writer, c.Request, session.ID.Hex()); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "WEBSOCKET_UPGRADE_FAILED", "Failed to open session feed: "+err.Error())
	}
}

func (h *SOSHandler) authorizeViewer(c *gin.Context) (*models.EmergencySession, bool) {
	sessionID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid session ID")
		return nil, false
	}

	token := c.Query("token")
	if token == "" {
		utils.UnauthorizedResponse(c)
		return nil, false
	}

	session, err := h.sessionStore.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		// Not found and bad token are indistinguishable on purpose.
		utils.UnauthorizedResponse(c)
		return nil, false
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(session.AccessToken)) != 1 {
		utils.UnauthorizedResponse(c)
		return nil, false
	}

	return session, true
}

func (h *SOSHandler) respondStartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNoContactsConfigured):
		utils.ErrorResponse(c, http.StatusPreconditionFailed, "NO_EMERGENCY_CONTACTS", "Add at least one emergency contact before starting an SOS")
	case errors.Is(err, services.ErrSessionAlreadyActive):
		utils.ConflictResponse(c, "An emergency session is already active")
	case errors.Is(err, services.ErrSessionCreateFailed):
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "SESSION_CREATE_FAILED", "Could not record the emergency session; check connectivity and retry")
	default:
		utils.ErrorResponse(c, http.StatusInternalServerError, "SESSION_START_FAILED", "Failed to start session: "+err.Error())
	}
}

func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		utils.UnauthorizedResponse(c)
		return primitive.NilObjectID, false
	}

	userObjectID, ok := userID.(primitive.ObjectID)
	if !ok {
		utils.BadRequestResponse(c, "Invalid user ID")
		return primitive.NilObjectID, false
	}

	return userObjectID, true
}
