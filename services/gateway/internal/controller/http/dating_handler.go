package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"matchbot/pkg/logger"
	"matchbot/pkg/protocol"
	"matchbot/services/gateway/internal/rpc"
	"matchbot/services/gateway/internal/usecase"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

const maxPhotoSize = 10 << 20

type DatingHandler struct {
	datingUseCase usecase.DatingUseCase
	logger        *logger.Logger
}

func NewDatingHandler(datingUseCase usecase.DatingUseCase, logger *logger.Logger) *DatingHandler {
	return &DatingHandler{
		datingUseCase: datingUseCase,
		logger:        logger,
	}
}

type reactionRequest struct {
	ToUserID uint  `json:"to_user_id" binding:"required"`
	IsLike   *bool `json:"is_like" binding:"required"`
}

type preferencesRequest struct {
	PreferredGender *string  `json:"preferred_gender"`
	MinAge          *int     `json:"min_age"`
	MaxAge          *int     `json:"max_age"`
	MinRating       *float64 `json:"min_rating"`
	MaxRating       *float64 `json:"max_rating"`
}

type profileRequest struct {
	FullName   *string `json:"full_name"`
	Firstname  *string `json:"firstname"`
	Lastname   *string `json:"lastname"`
	Mname      *string `json:"mname"`
	Age        *int    `json:"age"`
	Gender     *string `json:"gender"`
	Bio        *string `json:"bio"`
	ActionType string  `json:"action_type"`
}

// CheckUser godoc
// @Summary      Check registration
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        tg_id path int true "Platform user id"
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Router       /users/{tg_id}/exists [get]
func (h *DatingHandler) CheckUser(c *gin.Context) {
	tgID, ok := h.tgID(c)
	if !ok {
		return
	}

	exists, err := h.datingUseCase.CheckUser(c.Request.Context(), tgID)
	if err != nil {
		h.handleError(c, "check user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tg_id": tgID, "exists": exists})
}

// Register godoc
// @Summary      Register a profile
// @Description  Uploads the photo and queues profile creation. The worker does not confirm it.
// @Tags         users
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        tg_id     path     int    true  "Platform user id"
// @Param        full_name formData string true  "Lastname firstname [middle name]"
// @Param        age       formData int    true  "Age"
// @Param        gender    formData string true  "Gender"
// @Param        bio       formData string false "About"
// @Param        username  formData string false "Platform username"
// @Param        photo     formData file   true  "Photo"
// @Success      202  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /users/{tg_id}/register [post]
func (h *DatingHandler) Register(c *gin.Context) {
	tgID, ok := h.tgID(c)
	if !ok {
		return
	}

	age, err := strconv.Atoi(c.PostForm("age"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "age must be a number"})
		return
	}

	data, filename, ok := h.readPhoto(c)
	if !ok {
		return
	}

	form := usecase.RegistrationForm{
		FullName: c.PostForm("full_name"),
		Age:      age,
		Gender:   c.PostForm("gender"),
		Bio:      c.PostForm("bio"),
	}
	if err := h.datingUseCase.Register(c.Request.Context(), tgID, c.PostForm("username"), form, data, filename); err != nil {
		h.handleError(c, "register", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// NextProfile godoc
// @Summary      Next candidate profile
// @Tags         meetings
// @Produce      json
// @Security     BearerAuth
// @Param        tg_id   path  int true  "Platform user id"
// @Param        pending query int false "Profile id left without a reaction"
// @Success      200  {object}  map[string]interface{}
// @Router       /users/{tg_id}/next-profile [get]
func (h *DatingHandler) NextProfile(c *gin.Context) {
	tgID, ok := h.tgID(c)
	if !ok {
		return
	}

	var pending *uint
	if raw := c.Query("pending"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "pending must be a profile id"})
			return
		}
		v := uint(id)
		pending = &v
	}

	candidate, err := h.datingUseCase.NextProfile(c.Request.Context(), tgID, pending)
	if err != nil {
		h.handleError(c, "next profile", err)
		return
	}
	if candidate == nil {
		c.JSON(http.StatusOK, gin.H{"status": protocol.StatusEmpty})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     protocol.StatusSuccess,
		"profile":    candidate.Profile,
		"photo_data": candidate.Photo,
	})
}

// React godoc
// @Summary      Like or dislike a profile
// @Tags         meetings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        tg_id   path int             true "Platform user id"
// @Param        request body reactionRequest true "Reaction"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /users/{tg_id}/reactions [post]
func (h *DatingHandler) React(c *gin.Context) {
	tgID, ok := h.tgID(c)
	if !ok {
		return
	}

	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := h.datingUseCase.React(c.Request.Context(), tgID, req.ToUserID, *req.IsLike)
	if err != nil {
		h.handleError(c, "react", err)
		return
	}

	body := gin.H{"match": outcome.Match}
	if outcome.Peer != nil {
		body["matched_user"] = outcome.Peer
	}
	c.JSON(http.StatusOK, body)
}

// UpdatePreferences godoc
// @Summary      Update search preferences
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        tg_id   path int                true "Platform user id"
// @Param        request body preferencesRequest true "Fields to change"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /users/{tg_id}/preferences [put]
func (h *DatingHandler) UpdatePreferences(c *gin.Context) {
	tgID, ok := h.tgID(c)
	if !ok {
		return
	}

	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fields, err := h.datingUseCase.UpdatePreferences(c.Request.Context(), tgID, protocol.PreferenceUpdate{
		PreferredGender: req.PreferredGender,
		MinAge:          req.MinAge,
		MaxAge:          req.MaxAge,
		MinRating:       req.MinRating,
		MaxRating:       req.MaxRating,
	})
	if err != nil {
		h.handleError(c, "update preferences", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": protocol.StatusUpdated, "updated_fields": fields})
}

// UpdatePhoto godoc
// @Summary      Replace the profile photo
// @Tags         users
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        tg_id path     int  true "Platform user id"
// @Param        photo formData file true "Photo"
// @Success      200  {object}  map[string]string
// @Router       /users/{tg_id}/photo [put]
func (h *DatingHandler) UpdatePhoto(c *gin.Context) {
	tgID, ok := h.tgID(c)
	if !ok {
		return
	}

	data, filename, ok := h.readPhoto(c)
	if !ok {
		return
	}

	url, err := h.datingUseCase.UpdatePhoto(c.Request.Context(), tgID, data, filename)
	if err != nil {
		h.handleError(c, "update photo", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": protocol.StatusSuccess, "photo_url": url})
}

// UpdateProfile godoc
// @Summary      Edit profile fields
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        tg_id   path int            true "Platform user id"
// @Param        request body profileRequest true "Fields to change"
// @Success      200  {object}  map[string]interface{}
// @Router       /users/{tg_id}/profile [patch]
func (h *DatingHandler) UpdateProfile(c *gin.Context) {
	tgID, ok := h.tgID(c)
	if !ok {
		return
	}

	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fields, err := h.datingUseCase.UpdateProfileField(c.Request.Context(), tgID, protocol.ProfileUpdate{
		FullName:  req.FullName,
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
		Mname:     req.Mname,
		Age:       req.Age,
		Gender:    req.Gender,
		Bio:       req.Bio,
	}, req.ActionType)
	if err != nil {
		h.handleError(c, "update profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": protocol.StatusSuccess, "updated_fields": fields})
}

// Rating godoc
// @Summary      Own rating
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        tg_id path int true "Platform user id"
// @Success      200  {object}  usecase.RatingView
// @Router       /users/{tg_id}/rating [get]
func (h *DatingHandler) Rating(c *gin.Context) {
	tgID, ok := h.tgID(c)
	if !ok {
		return
	}

	view, err := h.datingUseCase.Rating(c.Request.Context(), tgID)
	if err != nil {
		h.handleError(c, "rating", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Photo godoc
// @Summary      Photo bytes by URL
// @Description  Served from the photo cache, falling back to object storage
// @Tags         photos
// @Produce      octet-stream
// @Security     BearerAuth
// @Param        tg_id path  int    true "Platform user id"
// @Param        url   query string true "Photo URL"
// @Success      200
// @Failure      404  {object}  map[string]string
// @Router       /users/{tg_id}/photo [get]
func (h *DatingHandler) Photo(c *gin.Context) {
	data, found, err := h.datingUseCase.Photo(c.Request.Context(), c.Query("url"))
	if err != nil {
		h.handleError(c, "photo", err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}
	c.Data(http.StatusOK, mimetype.Detect(data).String(), data)
}

func (h *DatingHandler) tgID(c *gin.Context) (int64, bool) {
	tgID, err := strconv.ParseInt(c.Param("tg_id"), 10, 64)
	if err != nil || tgID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tg_id"})
		return 0, false
	}
	return tgID, true
}

func (h *DatingHandler) readPhoto(c *gin.Context) ([]byte, string, bool) {
	header, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return nil, "", false
	}
	if header.Size > maxPhotoSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("photo must be at most %d MB", maxPhotoSize>>20)})
		return nil, "", false
	}

	data, err := readFormFile(header)
	if err != nil {
		h.logger.Error("Failed to read uploaded photo: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read photo"})
		return nil, "", false
	}
	return data, header.Filename, true
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxPhotoSize+1))
}

func (h *DatingHandler) handleError(c *gin.Context, op string, err error) {
	var remote *protocol.RemoteError
	switch {
	case errors.Is(err, rpc.ErrServiceUnavailable):
		h.logger.Warn("%s: %v", op, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service is temporarily unavailable, please try again later"})
	case errors.Is(err, usecase.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &remote):
		if remote.Message == protocol.ErrInternal.Error() {
			h.logger.Error("Failed to %s: worker reported an internal error", op)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		if strings.Contains(remote.Message, "not found") {
			c.JSON(http.StatusNotFound, gin.H{"error": remote.Message})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": remote.Message})
	default:
		h.logger.Error("Failed to %s: %v", op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
