package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"mealtrail-backend/internal/models"
	"mealtrail-backend/internal/registry"
	"mealtrail-backend/pkg/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

type CreateUserRequest struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	Name        string  `json:"name"`
	Role        string  `json:"role"` // "customer", "partner", "owner" or "admin"
	VehicleType *string `json:"vehicle_type,omitempty"`
	VehicleID   *string `json:"vehicle_id,omitempty"`
}

// CreateUser creates a new account. Partner signups also get their registry
// record so availability toggles and assignment can see them immediately.
// Requires admin authentication.
func CreateUser(db *sqlx.DB, reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if req.Email == "" || req.Password == "" || req.Name == "" || req.Role == "" {
			utils.RespondError(w, http.StatusBadRequest, "Email, password, name, and role are required")
			return
		}

		validRoles := map[string]bool{"customer": true, "partner": true, "owner": true, "admin": true}
		if !validRoles[req.Role] {
			utils.RespondError(w, http.StatusBadRequest, "Role must be 'customer', 'partner', 'owner' or 'admin'")
			return
		}

		// Check if user already exists
		var existingID string
		if err := db.Get(&existingID, "SELECT id FROM users WHERE email = $1", req.Email); err == nil {
			utils.RespondError(w, http.StatusConflict, "User with this email already exists")
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to hash password")
			return
		}

		now := time.Now().Unix()
		user := models.User{
			ID:          uuid.New().String(),
			Email:       req.Email,
			Password:    string(hashedPassword),
			Name:        req.Name,
			Role:        req.Role,
			VehicleType: req.VehicleType,
			VehicleID:   req.VehicleID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		query := `
			INSERT INTO users (id, email, password, name, role, vehicle_type, vehicle_id, created_at, updated_at)
			VALUES (:id, :email, :password, :name, :role, :vehicle_type, :vehicle_id, :created_at, :updated_at)
		`
		if _, err := db.NamedExec(query, user); err != nil {
			log.Printf("❌ Failed to create user: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to create user")
			return
		}

		if req.Role == "partner" {
			// New partners start unavailable until their client checks in.
			reg.SetAvailability(user.ID, false)
		}

		log.Printf("✅ Created user: %s (%s)", user.Email, user.Role)
		utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"user":    user.ToUserResponse(),
		})
	}
}
