package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/ivolkova/luthier/internal/auth"
	"github.com/ivolkova/luthier/internal/common"
	"github.com/ivolkova/luthier/internal/config"
	"github.com/ivolkova/luthier/internal/job"
	"github.com/ivolkova/luthier/internal/memq"
	"github.com/ivolkova/luthier/internal/models"
	"github.com/ivolkova/luthier/internal/redis"
	"github.com/ivolkova/luthier/internal/repository"
	"github.com/ivolkova/luthier/internal/storage"
	"github.com/ivolkova/luthier/internal/validation"
	"github.com/ivolkova/luthier/internal/workers"
)

type Handlers struct {
	Q       memq.JobQueue
	Repo    *repository.Repository
	Storage storage.Storage
	Redis   *redis.Service
	Config  config.Config
}

// Attachment targets. Ownership links and users don't carry files.
var allowedAttachmentTarget = map[string]bool{
	models.EntityClient:          true,
	models.EntityInstrument:      true,
	models.EntityMaintenanceTask: true,
}

func (h *Handlers) Routers(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)

	r.Group(func(r chi.Router) {
		// Credential endpoints are rate limited harder than the rest of the
		// API.
		r.Use(httprate.LimitByIP(20, time.Minute))

		r.Post("/v1/auth/register", h.register)
		r.Post("/v1/auth/login", h.login)
		r.Post("/v1/auth/refresh", h.refresh)
	})

	// for static file serving when the local storage backend is active
	if cfg := storage.LoadConfig(); cfg.Type == storage.TypeLocal {
		r.Get("/files/*", h.serveFiles)
	}

	r.Group(func(r chi.Router) {
		var blacklist auth.TokenBlacklist
		if h.Redis != nil {
			blacklist = h.Redis
		}
		r.Use(auth.JWTMiddleware(h.Config.JWTSecret, h.Config.JWTIssuer, blacklist))

		r.Post("/v1/auth/logout", h.logout)

		r.With(auth.RequirePerm(auth.PermFileUpload)).Post("/v1/attachments", h.uploadAttachment)
		r.With(auth.RequirePerm(auth.PermFileUpload)).Post("/v1/attachments/presign/put", h.presignPut)
		r.With(auth.RequirePerm(auth.PermFileUpload)).Post("/v1/attachments/presign/post", h.presignPost)

		r.With(auth.RequirePerm(auth.PermFileRead)).Get("/v1/attachments/{id}", h.getAttachment)
		r.With(auth.RequirePerm(auth.PermFileRead)).Get("/v1/attachments/{id}/content", h.downloadAttachment)
		r.With(auth.RequirePerm(auth.PermEntityRead)).Get("/v1/entities/{entityType}/{entityID}/attachments", h.listEntityAttachments)

		r.With(auth.RequirePerm(auth.PermFileDelete)).Delete("/v1/attachments/{id}", h.deleteAttachment)

		r.With(auth.RequirePerm(auth.PermJobReadOwn)).Get("/v1/jobs/{id}", h.getJob)
	})
}

func validationFailed(w http.ResponseWriter, errs validation.ValidationErrors) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"error":   "validation failed",
		"details": errs,
	}); err != nil {
		slog.Warn("encode validation errors", "err", err)
	}
}

func (h *Handlers) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required,min=3,max=64"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=6"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if errs := validation.ValidateStruct(req); len(errs) > 0 {
		validationFailed(w, errs)
		return
	}

	passwordHash, err := h.Repo.HashPassword(req.Password)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
	}

	if err := h.Repo.CreateUser(r.Context(), user); err != nil {
		if common.IsConflict(err) {
			http.Error(w, "username or email already exists", http.StatusConflict)
			return
		}
		slog.Error("failed to create user", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// New accounts start as workshop technicians; managers promote from there.
	if err := h.Repo.AssignRoleToUser(r.Context(), user.ID, "technician"); err != nil {
		slog.Error("failed to assign role to user", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message": "user registered successfully",
		"user_id": user.ID,
	})
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if errs := validation.ValidateStruct(req); len(errs) > 0 {
		validationFailed(w, errs)
		return
	}

	user, err := h.Repo.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		slog.Warn("login attempt with invalid email", "email", req.Email)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	if !h.Repo.CheckPassword(req.Password, user.PasswordHash) {
		slog.Warn("login attempt with invalid password", "email", req.Email)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	roleNames := make([]string, len(user.Roles))
	for i, role := range user.Roles {
		roleNames[i] = role.Name
	}

	tokens, err := auth.NewTokenPair(
		h.Config.JWTSecret,
		h.Config.JWTIssuer,
		user.ID,
		roleNames,
		h.Config.JWTTTLAccess,
		h.Config.JWTTTLRefresh,
	)
	if err != nil {
		slog.Error("failed to create token pair", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	tokenHash := h.Repo.HashRefreshToken(tokens.RefreshToken)

	if err := h.Redis.StoreRefreshToken(r.Context(), user.ID.String(), tokenHash, h.Config.JWTTTLRefresh); err != nil {
		slog.Error("failed to store refresh token", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	refreshToken := &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: tokenHash,
		ExpiresAt: time.Now().Add(h.Config.JWTTTLRefresh),
	}

	if err := h.Repo.CreateRefreshToken(r.Context(), refreshToken); err != nil {
		slog.Error("failed to create refresh token record", "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tokens)
}

func (h *Handlers) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if errs := validation.ValidateStruct(req); len(errs) > 0 {
		validationFailed(w, errs)
		return
	}

	tokenHash := h.Repo.HashRefreshToken(req.RefreshToken)

	userID, err := h.Redis.GetRefreshTokenUserID(r.Context(), tokenHash)
	if err != nil {
		http.Error(w, "invalid refresh token", http.StatusUnauthorized)
		return
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		slog.Error("invalid user ID from refresh token", "user_id", userID)
		http.Error(w, "invalid refresh token", http.StatusUnauthorized)
		return
	}

	user, err := h.Repo.GetUserByID(r.Context(), userUUID)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		http.Error(w, "invalid refresh token", http.StatusUnauthorized)
		return
	}

	roleNames := make([]string, len(user.Roles))
	for i, role := range user.Roles {
		roleNames[i] = role.Name
	}

	tokens, err := auth.NewTokenPair(
		h.Config.JWTSecret,
		h.Config.JWTIssuer,
		user.ID,
		roleNames,
		h.Config.JWTTTLAccess,
		h.Config.JWTTTLRefresh,
	)
	if err != nil {
		slog.Error("failed to create token pair", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := h.Redis.RevokeRefreshToken(r.Context(), tokenHash); err != nil {
		slog.Error("failed to revoke old refresh token", "error", err)
	}

	newTokenHash := h.Repo.HashRefreshToken(tokens.RefreshToken)
	if err := h.Redis.StoreRefreshToken(r.Context(), user.ID.String(), newTokenHash, h.Config.JWTTTLRefresh); err != nil {
		slog.Error("failed to store new refresh token", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	newRefreshToken := &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: newTokenHash,
		ExpiresAt: time.Now().Add(h.Config.JWTTTLRefresh),
	}

	if err := h.Repo.CreateRefreshToken(r.Context(), newRefreshToken); err != nil {
		slog.Error("failed to create new refresh token record", "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tokens)
}

func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
		All          bool   `json:"all"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	claims, _ := auth.FromContext(r.Context())

	if req.RefreshToken != "" {
		tokenHash := h.Repo.HashRefreshToken(req.RefreshToken)
		if err := h.Redis.RevokeRefreshToken(r.Context(), tokenHash); err != nil {
			slog.Error("failed to revoke refresh token", "error", err)
		}
		if err := h.Repo.RevokeRefreshToken(r.Context(), tokenHash); err != nil {
			slog.Error("failed to revoke refresh token in db", "error", err)
		}
	}

	// "all" ends every session for the user, not just the presented pair.
	if req.All && claims != nil {
		if err := h.Redis.RevokeAllUserTokens(r.Context(), claims.UserID); err != nil {
			slog.Error("failed to revoke user refresh tokens", "error", err)
		}
	}

	// Blacklist the presented access token for its remaining lifetime.
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if claims != nil && raw != "" && claims.ExpiresAt != nil {
		if ttl := time.Until(claims.ExpiresAt.Time); ttl > 0 {
			if err := h.Redis.StoreBlacklistedToken(r.Context(), auth.HashToken(raw), ttl); err != nil {
				slog.Error("failed to blacklist access token", "error", err)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "logged out successfully"})
}

func (h *Handlers) serveFiles(w http.ResponseWriter, r *http.Request) {
	filePath := strings.TrimPrefix(r.URL.Path, "/files/")
	if filePath == "" {
		http.Error(w, "file path required", http.StatusBadRequest)
		return
	}

	if strings.Contains(filePath, "..") {
		http.Error(w, "invalid file path", http.StatusBadRequest)
		return
	}

	fullPath := filepath.Join(storage.LoadConfig().LocalRoot, filePath)
	http.ServeFile(w, r, fullPath)
}

func (h *Handlers) uploadAttachment(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}

	entityType := r.FormValue("entity_type")
	if !allowedAttachmentTarget[entityType] {
		http.Error(w, "unknown entity type", http.StatusBadRequest)
		return
	}

	entityID, err := uuid.Parse(r.FormValue("entity_id"))
	if err != nil {
		http.Error(w, "bad entity_id", http.StatusBadRequest)
		return
	}

	if err := h.entityExists(r, entityType, entityID); err != nil {
		if common.IsNotFound(err) {
			http.Error(w, "entity not found", http.StatusNotFound)
			return
		}
		slog.Error("failed to look up attachment target", "entity_type", entityType, "entity_id", entityID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	fileHeader := files[0]

	file, err := fileHeader.Open()
	if err != nil {
		slog.Error("failed to open uploaded file", "filename", fileHeader.Filename, "error", err)
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		slog.Error("failed to read uploaded file", "filename", fileHeader.Filename, "error", err)
		http.Error(w, "failed to read file", http.StatusInternalServerError)
		return
	}

	if errs := validation.ValidateUpload(fileHeader, content, storage.LoadConfig().MaxFileSize); len(errs) > 0 {
		validationFailed(w, errs)
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mimetype.Detect(content).String()
	}

	key := h.Storage.GenerateFileKey(fileHeader.Filename, "")
	storedKey, err := h.Storage.SaveFile(r.Context(), content, key, contentType)
	if err != nil {
		slog.Error("failed to store attachment", "key", key, "error", err)
		http.Error(w, "failed to store file", http.StatusInternalServerError)
		return
	}

	var uploadedBy *uuid.UUID
	if claims, ok := auth.FromContext(r.Context()); ok {
		if id, err := claims.UserUUID(); err == nil {
			uploadedBy = &id
		}
	}

	att := &models.Attachment{
		EntityType:       entityType,
		EntityID:         entityID,
		UploadedBy:       uploadedBy,
		OriginalFilename: fileHeader.Filename,
		ContentType:      contentType,
		FileSize:         int64(len(content)),
		StorageKey:       storedKey,
	}

	if err := h.Repo.CreateAttachment(r.Context(), att); err != nil {
		slog.Error("failed to create attachment record", "error", err)
		http.Error(w, "failed to create attachment", http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(workers.AttachmentJobPayload{
		AttachmentID: att.ID,
		StorageKey:   storedKey,
	})
	if err != nil {
		slog.Error("failed to marshal attachment payload", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	j := &job.Job{
		Type:    job.TypeAttachmentProcess,
		Payload: payload,
	}
	if uploadedBy != nil {
		j.UserID = uploadedBy.String()
	}

	jobID, err := h.Q.Enqueue(r.Context(), j)
	if err != nil {
		slog.Error("failed to enqueue attachment job", "attachment_id", att.ID, "error", err)
		http.Error(w, "enqueue failed", http.StatusServiceUnavailable)
		return
	}

	slog.Info("attachment uploaded",
		"attachment_id", att.ID,
		"entity_type", entityType,
		"entity_id", entityID,
		"key", storedKey,
		"job_id", jobID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"attachment": att,
		"job_id":     jobID,
	})
}

// entityExists checks the attachment target row before any bytes are stored.
func (h *Handlers) entityExists(r *http.Request, entityType string, entityID uuid.UUID) error {
	ctx := r.Context()
	switch entityType {
	case models.EntityClient:
		_, err := h.Repo.GetClientByID(ctx, entityID)
		return err
	case models.EntityInstrument:
		_, err := h.Repo.GetInstrumentByID(ctx, entityID)
		return err
	case models.EntityMaintenanceTask:
		_, err := h.Repo.GetMaintenanceTaskByID(ctx, entityID)
		return err
	default:
		return common.ErrNotFound
	}
}

func (h *Handlers) getAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}

	att, err := h.Repo.GetAttachmentByID(r.Context(), id)
	if err != nil {
		if common.IsNotFound(err) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		slog.Error("failed to get attachment", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	url, err := h.Storage.FileURL(r.Context(), att.StorageKey, 0)
	if err != nil {
		slog.Warn("failed to build file url", "key", att.StorageKey, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"attachment": att,
		"url":        url,
	}); err != nil {
		slog.Warn("encode attachment", "err", err)
	}
}

func (h *Handlers) downloadAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}

	att, err := h.Repo.GetAttachmentByID(r.Context(), id)
	if err != nil {
		if common.IsNotFound(err) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		slog.Error("failed to get attachment", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	content, err := h.Storage.DownloadFile(r.Context(), att.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			http.Error(w, "stored object not found", http.StatusNotFound)
			return
		}
		slog.Error("failed to download attachment", "key", att.StorageKey, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", att.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", att.OriginalFilename))
	if _, err := w.Write(content); err != nil {
		slog.Warn("write attachment content", "err", err)
	}
}

func (h *Handlers) listEntityAttachments(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "entityType")
	if !allowedAttachmentTarget[entityType] {
		http.Error(w, "unknown entity type", http.StatusBadRequest)
		return
	}

	entityID, err := uuid.Parse(chi.URLParam(r, "entityID"))
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}

	attachments, err := h.Repo.GetAttachmentsByEntity(r.Context(), entityType, entityID)
	if err != nil {
		slog.Error("failed to list attachments", "entity_type", entityType, "entity_id", entityID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(attachments); err != nil {
		slog.Warn("encode attachments", "err", err)
	}
}

func (h *Handlers) deleteAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}

	att, err := h.Repo.GetAttachmentByID(r.Context(), id)
	if err != nil {
		if common.IsNotFound(err) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		slog.Error("failed to get attachment", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// Deduplicated uploads share a storage key; only remove the object once
	// the last row pointing at it goes.
	refs, err := h.Repo.CountAttachmentsByStorageKey(r.Context(), att.StorageKey, att.ID)
	if err != nil {
		slog.Error("failed to count storage key references", "key", att.StorageKey, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if refs == 0 {
		existed, err := h.Storage.DeleteFile(r.Context(), att.StorageKey)
		if err != nil {
			slog.Error("failed to delete stored object", "key", att.StorageKey, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if !existed {
			slog.Warn("stored object already gone", "key", att.StorageKey)
		}
	} else {
		slog.Info("stored object retained, still referenced", "key", att.StorageKey, "refs", refs)
	}

	if err := h.Repo.DeleteAttachment(r.Context(), id); err != nil {
		if common.IsNotFound(err) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		slog.Error("failed to delete attachment record", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "attachment deleted"})
}

func (h *Handlers) presignPut(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename    string `json:"filename" validate:"required"`
		ContentType string `json:"content_type" validate:"required"`
		ExpiresIn   int64  `json:"expires_in,omitempty" validate:"omitempty,gt=0"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if errs := validation.ValidateStruct(req); len(errs) > 0 {
		validationFailed(w, errs)
		return
	}

	if !validation.IsAllowedUploadType(req.ContentType) {
		http.Error(w, "unsupported content type", http.StatusBadRequest)
		return
	}

	key := h.Storage.GenerateFileKey(req.Filename, "")
	url, err := h.Storage.PresignPut(r.Context(), key, req.ContentType, time.Duration(req.ExpiresIn)*time.Second)
	if err != nil {
		if errors.Is(err, storage.ErrPresignNotSupported) {
			http.Error(w, "presigned uploads are not supported by this backend", http.StatusNotImplemented)
			return
		}
		slog.Error("failed to presign upload", "key", key, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"key":    key,
		"url":    url,
		"method": "PUT",
	})
}

func (h *Handlers) presignPost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename    string `json:"filename" validate:"required"`
		ContentType string `json:"content_type" validate:"required"`
		MaxMB       int64  `json:"max_mb,omitempty" validate:"omitempty,gt=0"`
		ExpiresIn   int64  `json:"expires_in,omitempty" validate:"omitempty,gt=0"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if errs := validation.ValidateStruct(req); len(errs) > 0 {
		validationFailed(w, errs)
		return
	}

	if !validation.IsAllowedUploadType(req.ContentType) {
		http.Error(w, "unsupported content type", http.StatusBadRequest)
		return
	}

	key := h.Storage.GenerateFileKey(req.Filename, "")
	post, err := h.Storage.PresignPost(r.Context(), key, req.ContentType, req.MaxMB, time.Duration(req.ExpiresIn)*time.Second)
	if err != nil {
		if errors.Is(err, storage.ErrPresignNotSupported) {
			http.Error(w, "presigned uploads are not supported by this backend", http.StatusNotImplemented)
			return
		}
		slog.Error("failed to presign upload", "key", key, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"key":    key,
		"url":    post.URL,
		"fields": post.Fields,
	})
}

func (h *Handlers) getJob(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}

	j, ok := h.Q.Status(r.Context(), id)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "no auth context", http.StatusUnauthorized)
		return
	}

	perms := auth.PermsForRoles(claims.Roles)

	if _, hasAdminPerm := perms[auth.PermAdminAll]; !hasAdminPerm {
		if _, hasReadAllPerm := perms[auth.PermJobReadAll]; !hasReadAllPerm {
			if j.UserID != "" && j.UserID != claims.UserID {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}
	}

	if err := json.NewEncoder(w).Encode(j); err != nil {
		slog.Warn("encode job", "err", err)
	}
}
