// Package http exposes shipment provisioning over HTTP.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/HendrickFS/bio-supply-twin/internal/audit"
	shipments "github.com/HendrickFS/bio-supply-twin/internal/shipments/application"
)

// ShipmentProvisioner registers a box and the samples travelling in it.
type ShipmentProvisioner interface {
	ProvisionShipment(ctx context.Context, req shipments.ProvisionRequest) (*shipments.ProvisionResponse, error)
}

// Handler handles shipment provisioning requests.
type Handler struct {
	service     ShipmentProvisioner
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(service ShipmentProvisioner, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("shipments handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP handles POST /api/v1/shipments.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req shipments.ProvisionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	resp, err := h.service.ProvisionShipment(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(resp)
	h.logAudit(r, resp)
}

func (h *Handler) logAudit(r *http.Request, resp *shipments.ProvisionResponse) {
	if h.auditLogger == nil {
		return
	}
	meta, _ := json.Marshal(map[string]any{"sample_ids": resp.SampleIDs})
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        "api",
		Action:       "shipment.provision",
		ResourceType: "shipment",
		ResourceID:   resp.BoxID,
		BoxID:        resp.BoxID,
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}
