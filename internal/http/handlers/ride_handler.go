// README: Ride dispatch handlers; create, read, claim, and lifecycle operations.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chauffeur/internal/http/middleware"
	"chauffeur/internal/modules/ride"
	"chauffeur/internal/types"
)

// RideReader is the read path; in production it is the redis read-through
// cache, in tests the service itself.
type RideReader interface {
	Get(ctx context.Context, id types.ID) (*ride.Ride, error)
}

type RideHandler struct {
	svc    *ride.Service
	reader RideReader
}

func NewRideHandler(svc *ride.Service, reader RideReader) *RideHandler {
	if reader == nil {
		reader = svc
	}
	return &RideHandler{svc: svc, reader: reader}
}

type createRideReq struct {
	CustomerID     string   `json:"customer_id"`
	PickupLat      float64  `json:"pickup_lat"`
	PickupLng      float64  `json:"pickup_lng"`
	PickupAddress  string   `json:"pickup_address"`
	DropoffLat     float64  `json:"dropoff_lat"`
	DropoffLng     float64  `json:"dropoff_lng"`
	DropoffAddress string   `json:"dropoff_address"`
	PickupTime     string   `json:"pickup_time"`
	VehicleClass   string   `json:"vehicle_class"`
	Options        []string `json:"options"`
}

func (h *RideHandler) Create(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req createRideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	customer := req.CustomerID
	if customer == "" {
		customer = id.Subject
	}
	if customer != id.Subject && id.Role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot book for another customer"})
		return
	}

	var pickupTime time.Time
	if req.PickupTime != "" {
		t, err := time.Parse(time.RFC3339, req.PickupTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pickup_time"})
			return
		}
		pickupTime = t
	}

	r, err := h.svc.Create(c.Request.Context(), ride.CreateCommand{
		CustomerID:   types.ID(customer),
		Pickup:       types.Coordinate{Point: types.Point{Lat: req.PickupLat, Lng: req.PickupLng}, Address: req.PickupAddress},
		Dropoff:      types.Coordinate{Point: types.Point{Lat: req.DropoffLat, Lng: req.DropoffLng}, Address: req.DropoffAddress},
		PickupTime:   pickupTime,
		VehicleClass: req.VehicleClass,
		Options:      req.Options,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rideJSON(r))
}

func (h *RideHandler) Get(c *gin.Context) {
	r, err := h.reader.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, rideJSON(r))
}

func (h *RideHandler) Accept(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok || id.Role != "driver" {
		c.JSON(http.StatusForbidden, gin.H{"error": "driver role required"})
		return
	}
	r, err := h.svc.Accept(c.Request.Context(), ride.AcceptCommand{
		RideID:   types.ID(c.Param("id")),
		DriverID: types.ID(id.Subject),
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, rideJSON(r))
}

func (h *RideHandler) Start(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok || id.Role != "driver" {
		c.JSON(http.StatusForbidden, gin.H{"error": "driver role required"})
		return
	}
	r, err := h.svc.Start(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, rideJSON(r))
}

type completeRideReq struct {
	FinalPrice *float64 `json:"final_price"`
}

func (h *RideHandler) Complete(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok || id.Role != "driver" {
		c.JSON(http.StatusForbidden, gin.H{"error": "driver role required"})
		return
	}
	var req completeRideReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	r, err := h.svc.Complete(c.Request.Context(), ride.CompleteCommand{
		RideID:     types.ID(c.Param("id")),
		FinalPrice: req.FinalPrice,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, rideJSON(r))
}

type cancelRideReq struct {
	Reason string `json:"reason"`
}

func (h *RideHandler) Cancel(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	var req cancelRideReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	r, err := h.svc.Cancel(c.Request.Context(), ride.CancelCommand{
		RideID: types.ID(c.Param("id")),
		Actor:  actorForRole(id.Role),
		Reason: req.Reason,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, rideJSON(r))
}

func (h *RideHandler) NoShow(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	r, err := h.svc.MarkNoShow(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, rideJSON(r))
}

func (h *RideHandler) Delay(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	r, err := h.svc.MarkDelayed(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, rideJSON(r))
}

func requireAdmin(c *gin.Context) bool {
	id, ok := middleware.IdentityFrom(c)
	if !ok || id.Role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return false
	}
	return true
}

func actorForRole(role string) ride.Actor {
	switch role {
	case "driver":
		return ride.ActorDriver
	case "admin":
		return ride.ActorAdmin
	default:
		return ride.ActorClient
	}
}

func writeRideError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ride.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "ride not found"})
	case errors.Is(err, ride.ErrAlreadyClaimed),
		errors.Is(err, ride.ErrInvalidState),
		errors.Is(err, ride.ErrConflict):
		// Expected under contention; the UI shows "already taken".
		c.JSON(http.StatusConflict, gin.H{"error": "ride no longer available"})
	case errors.Is(err, ride.ErrBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func rideJSON(r *ride.Ride) gin.H {
	out := gin.H{
		"ride_id":          r.ID,
		"customer_id":      r.CustomerID,
		"status":           r.Status,
		"vehicle_class":    r.VehicleClass,
		"options":          r.Options,
		"pickup_address":   r.Pickup.Address,
		"dropoff_address":  r.Dropoff.Address,
		"distance_km":      r.DistanceKm,
		"duration_seconds": r.DurationSeconds,
		"estimated_price":  r.EstimatedPrice,
		"final_price":      r.FinalPrice,
	}
	if r.DriverID != nil {
		out["driver_id"] = *r.DriverID
	}
	return out
}
