package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"checkin-desk/internal/formulas"
	"checkin-desk/internal/models"
)

const urlProperty = "url"

// CheckInService is the check-in workflow the transports call into
type CheckInService interface {
	CheckIn(ctx context.Context, identifier string) models.Result
	UpdateTemplate(tpl string) models.Result
	Template() string
	CheckIns(ctx context.Context) ([]models.CheckIn, error)
}

type FormulaManager interface {
	Backup(ctx context.Context) ([]string, error)
	Restore(ctx context.Context) ([]string, error)
}

type Settings interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// Messenger delivers a text message to a phone number
type Messenger interface {
	SendMessage(phoneNumber, message string) error
}

type checkInRequest struct {
	Identifier string `json:"identifier" validate:"max=256"`
}

type templateRequest struct {
	Template string `json:"template" validate:"max=4096"`
}

type urlRequest struct {
	URL string `json:"url" validate:"omitempty,url"`
}

// API serves the check-in operations over HTTP
type API struct {
	service     CheckInService
	formulas    FormulaManager
	settings    Settings
	notifier    Messenger
	phoneColumn string
	validate    *validator.Validate
	log         zerolog.Logger
}

func NewAPI(service CheckInService, formulas FormulaManager, settings Settings, logger zerolog.Logger) *API {
	return &API{
		service:  service,
		formulas: formulas,
		settings: settings,
		validate: validator.New(),
		log:      logger.With().Str("component", "API").Logger(),
	}
}

// WithNotifier sends each successful check-in's confirmation to the phone
// number found in phoneColumn of the attendee's row
func (a *API) WithNotifier(m Messenger, phoneColumn string) *API {
	a.notifier = m
	a.phoneColumn = phoneColumn
	return a
}

// Routes registers all endpoints on r
func (a *API) Routes(r *mux.Router, limiter *RateLimiter) {
	r.HandleFunc("/health", a.health).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	var checkIn http.Handler = http.HandlerFunc(a.checkIn)
	if limiter != nil {
		checkIn = limiter.Middleware(checkIn)
	}
	api.Handle("/checkin", checkIn).Methods("POST")
	api.HandleFunc("/checkins", a.listCheckIns).Methods("GET")
	api.HandleFunc("/template", a.getTemplate).Methods("GET")
	api.HandleFunc("/template", a.updateTemplate).Methods("PUT")
	api.HandleFunc("/formulas/backup", a.backupFormulas).Methods("POST")
	api.HandleFunc("/formulas/restore", a.restoreFormulas).Methods("POST")
	api.HandleFunc("/settings/url", a.getURL).Methods("GET")
	api.HandleFunc("/settings/url", a.setURL).Methods("PUT")
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (a *API) checkIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if !a.decode(w, r, &req) {
		return
	}

	res := a.service.CheckIn(r.Context(), req.Identifier)
	if res.Success && a.notifier != nil && res.Attendee != nil {
		a.notify(*res.Attendee, res.Message)
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) notify(attendee models.Row, message string) {
	phone, ok := attendee.Get(a.phoneColumn)
	if !ok || phone == "" {
		return
	}
	go func() {
		if err := a.notifier.SendMessage(phone, message); err != nil {
			a.log.Warn().Err(err).Str("phone", phone).Msg("Confirmation not delivered")
		}
	}()
}

func (a *API) listCheckIns(w http.ResponseWriter, r *http.Request) {
	list, err := a.service.CheckIns(r.Context())
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to list check-ins")
		http.Error(w, "Failed to list check-ins", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []models.CheckIn{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) getTemplate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, templateRequest{Template: a.service.Template()})
}

func (a *API) updateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !a.decode(w, r, &req) {
		return
	}
	res := a.service.UpdateTemplate(req.Template)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res)
}

func (a *API) backupFormulas(w http.ResponseWriter, r *http.Request) {
	cells, err := a.formulas.Backup(r.Context())
	if err != nil {
		a.log.Error().Err(err).Msg("Formula backup failed")
		http.Error(w, "Formula backup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, cellsResponse(cells))
}

func (a *API) restoreFormulas(w http.ResponseWriter, r *http.Request) {
	cells, err := a.formulas.Restore(r.Context())
	if errors.Is(err, formulas.ErrNoBackup) {
		http.Error(w, "No formula backup", http.StatusNotFound)
		return
	}
	if err != nil {
		a.log.Error().Err(err).Msg("Formula restore failed")
		http.Error(w, "Formula restore failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, cellsResponse(cells))
}

func (a *API) getURL(w http.ResponseWriter, r *http.Request) {
	url, _ := a.settings.Get(urlProperty)
	writeJSON(w, http.StatusOK, urlRequest{URL: url})
}

func (a *API) setURL(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.settings.Set(urlProperty, req.URL); err != nil {
		a.log.Error().Err(err).Msg("Failed to save url")
		http.Error(w, "Failed to save url", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// decode reads and validates a JSON body, answering 400 itself on failure
func (a *API) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	if err := a.validate.Struct(v); err != nil {
		http.Error(w, "Invalid request: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func cellsResponse(cells []string) map[string][]string {
	if cells == nil {
		cells = []string{}
	}
	return map[string][]string{"cells": cells}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
