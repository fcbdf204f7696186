package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"docket.org/internal/registry"
)

type createLetterRequest struct {
	RefNo               string     `json:"ref_no"`
	Direction           string     `json:"direction"`
	Status              string     `json:"status"`
	Confidentiality     string     `json:"confidentiality"`
	DateReceived        time.Time  `json:"date_received"`
	DateOnLetter        *time.Time `json:"date_on_letter"`
	SenderName          string     `json:"sender_name"`
	SenderOrg           string     `json:"sender_org"`
	RecipientDepartment string     `json:"recipient_department"`
	Subject             string     `json:"subject"`
	Summary             string     `json:"summary"`
	Category            string     `json:"category"`
	Tags                []string   `json:"tags"`
	RecipientIDs        []string   `json:"recipient_ids"`
}

type updateLetterRequest struct {
	Direction           *string    `json:"direction"`
	Status              *string    `json:"status"`
	Confidentiality     *string    `json:"confidentiality"`
	DateReceived        *time.Time `json:"date_received"`
	DateOnLetter        *time.Time `json:"date_on_letter"`
	SenderName          *string    `json:"sender_name"`
	SenderOrg           *string    `json:"sender_org"`
	RecipientDepartment *string    `json:"recipient_department"`
	Subject             *string    `json:"subject"`
	Summary             *string    `json:"summary"`
	Category            *string    `json:"category"`
	Tags                []string   `json:"tags"`
}

type nextRefRequest struct {
	Direction string `json:"direction"`
	Year      int    `json:"year"`
}

type signedURLRequest struct {
	LetterID string `json:"letter_id"`
}

type recipientsRequest struct {
	LetterID string   `json:"letter_id"`
	UserIDs  []string `json:"user_ids"`
	UserID   string   `json:"user_id"`
}

func (a *API) handleLetters(w http.ResponseWriter, r *http.Request) {
	if a.letters == nil {
		writeError(w, r, http.StatusServiceUnavailable, "registry service unavailable")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.listLetters(w, r)
	case http.MethodPost:
		a.createLetter(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listLetters(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit, err := parsePositiveInt(q.Get("limit"), 0, 1, 50)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	filter := registry.Filter{
		Direction:       registry.Direction(strings.ToUpper(q.Get("direction"))),
		Status:          registry.Status(strings.ToUpper(q.Get("status"))),
		Confidentiality: registry.Confidentiality(strings.ToUpper(q.Get("confidentiality"))),
		Query:           q.Get("q"),
		Limit:           limit,
	}
	letters, err := a.letters.ListLetters(r.Context(), actor, filter)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	if letters == nil {
		letters = []registry.Letter{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"letters": letters,
		"count":   len(letters),
	})
}

func (a *API) createLetter(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req createLetterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	letter, err := a.letters.CreateLetter(r.Context(), actor, registry.CreateLetterInput{
		RefNo:               req.RefNo,
		Direction:           registry.Direction(req.Direction),
		Status:              registry.Status(req.Status),
		Confidentiality:     registry.Confidentiality(req.Confidentiality),
		DateReceived:        req.DateReceived,
		DateOnLetter:        req.DateOnLetter,
		SenderName:          req.SenderName,
		SenderOrg:           req.SenderOrg,
		RecipientDepartment: req.RecipientDepartment,
		Subject:             req.Subject,
		Summary:             req.Summary,
		Category:            req.Category,
		Tags:                req.Tags,
		RecipientIDs:        req.RecipientIDs,
	})
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/letters/%s", letter.ID))
	writeJSON(w, http.StatusCreated, letter)
}

func (a *API) handleNextRef(w http.ResponseWriter, r *http.Request) {
	if a.letters == nil {
		writeError(w, r, http.StatusServiceUnavailable, "registry service unavailable")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.principal(w, r); !ok {
		return
	}
	var req nextRefRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Year == 0 {
		req.Year = time.Now().UTC().Year()
	}
	refNo, err := a.letters.NextRefNo(r.Context(), registry.Direction(req.Direction), req.Year)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ref_no": refNo,
		"year":   req.Year,
	})
}

func (a *API) handleLetterResource(w http.ResponseWriter, r *http.Request) {
	if a.letters == nil {
		writeError(w, r, http.StatusServiceUnavailable, "registry service unavailable")
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/letters/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")

	switch parts[0] {
	case "signed-url":
		if len(parts) != 1 {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		a.handleSignedURL(w, r)
		return
	case "recipients":
		if len(parts) != 2 {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		a.handleRecipients(w, r, parts[1])
		return
	}

	id := parts[0]
	switch len(parts) {
	case 1:
		switch r.Method {
		case http.MethodGet:
			a.getLetter(w, r, id)
		case http.MethodPost:
			a.updateLetter(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		}
	case 2:
		switch parts[1] {
		case "replace-scan":
			a.replaceScan(w, r, id)
		case "download":
			a.downloadLetter(w, r, id)
		default:
			writeError(w, r, http.StatusNotFound, "resource not found")
		}
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) getLetter(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	letter, err := a.letters.GetLetter(r.Context(), actor, id)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, letter)
}

func (a *API) updateLetter(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req updateLetterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	patch := registry.Patch{
		DateReceived:        req.DateReceived,
		DateOnLetter:        req.DateOnLetter,
		SenderName:          req.SenderName,
		SenderOrg:           req.SenderOrg,
		RecipientDepartment: req.RecipientDepartment,
		Subject:             req.Subject,
		Summary:             req.Summary,
		Category:            req.Category,
		Tags:                req.Tags,
	}
	if req.Direction != nil {
		d := registry.Direction(*req.Direction)
		patch.Direction = &d
	}
	if req.Status != nil {
		s := registry.Status(*req.Status)
		patch.Status = &s
	}
	if req.Confidentiality != nil {
		c := registry.Confidentiality(*req.Confidentiality)
		patch.Confidentiality = &c
	}
	letter, err := a.letters.UpdateLetter(r.Context(), actor, id, patch)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, letter)
}

func (a *API) replaceScan(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	letter, err := a.letters.ReplaceScan(r.Context(), actor, id, header.Filename, mimeType, file)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, letter)
}

func (a *API) downloadLetter(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	letter, rc, err := a.letters.Download(r.Context(), actor, id)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", letter.File.MimeType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%s", strconv.Quote(letter.File.Name)))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

func (a *API) handleSignedURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req signedURLRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.LetterID) == "" {
		writeError(w, r, http.StatusBadRequest, "letter_id is required")
		return
	}
	url, err := a.letters.SignedURL(r.Context(), actor, req.LetterID)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url": url,
	})
}

func (a *API) handleRecipients(w http.ResponseWriter, r *http.Request, op string) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}

	if op == "list" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		letterID := strings.TrimSpace(r.URL.Query().Get("letter_id"))
		if letterID == "" {
			writeError(w, r, http.StatusBadRequest, "letter_id is required")
			return
		}
		ids, err := a.letters.ListRecipients(r.Context(), actor, letterID)
		if err != nil {
			handleRegistryError(w, r, err)
			return
		}
		if ids == nil {
			ids = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"letter_id": letterID,
			"user_ids":  ids,
		})
		return
	}

	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req recipientsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.LetterID) == "" {
		writeError(w, r, http.StatusBadRequest, "letter_id is required")
		return
	}

	var err error
	switch op {
	case "add":
		if len(req.UserIDs) == 0 {
			writeError(w, r, http.StatusBadRequest, "user_ids is required")
			return
		}
		err = a.letters.AddRecipients(r.Context(), actor, req.LetterID, req.UserIDs)
	case "remove":
		if strings.TrimSpace(req.UserID) == "" {
			writeError(w, r, http.StatusBadRequest, "user_id is required")
			return
		}
		err = a.letters.RemoveRecipient(r.Context(), actor, req.LetterID, req.UserID)
	case "clear":
		err = a.letters.ClearRecipients(r.Context(), actor, req.LetterID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleRegistryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, registry.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, registry.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "access denied")
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "letter not found")
	case errors.Is(err, registry.ErrNoFile):
		writeError(w, r, http.StatusNotFound, "letter has no scan attached")
	case errors.Is(err, registry.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
