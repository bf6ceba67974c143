package authController

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"presale/config"
	"presale/database"
	"presale/logging"
	"presale/middleware"
	"presale/models"
	authValidator "presale/validators/auth"
)

const (
	maxFailedLogins   = 3
	blockDuration     = 5 * time.Minute
	failedLoginWindow = 15 * time.Minute
)

// RegisterAgent creates an agent account. Supervisors only.
func RegisterAgent(c *fiber.Ctx) error {
	reqData, ok := c.Locals(authValidator.LocalRegister).(*authValidator.RegisterAgentRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	db := database.Database.Db

	// Check if email already exists
	if err := db.Where("email = ?", reqData.Email).First(&models.Agent{}).Error; err == nil {
		return middleware.JsonResponse(c, fiber.StatusConflict, false, "Email is already registered!", nil)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(reqData.Password), bcrypt.DefaultCost)
	if err != nil {
		logging.Error().Add(logging.Component("auth")).Add(logging.ErrorField(err)).Msg("hash password")
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to process your request!", nil)
	}

	agent := models.Agent{
		Name:     reqData.Name,
		Email:    reqData.Email,
		Mobile:   reqData.Mobile,
		Role:     reqData.Role,
		Password: string(hashedPassword),
	}
	if err := db.Create(&agent).Error; err != nil {
		logging.Error().Add(logging.Component("auth")).Add(logging.ErrorField(err)).Msg("create agent")
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to register agent!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Agent registered.", agent)
}

func Login(c *fiber.Ctx) error {
	reqData, ok := c.Locals(authValidator.LocalLogin).(*authValidator.LoginRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	db := database.Database.Db

	var agent models.Agent
	query := db.Where("is_deleted = ?", false)
	if reqData.Email != "" {
		query = query.Where("email = ?", reqData.Email)
	} else {
		query = query.Where("mobile = ?", reqData.Mobile)
	}
	if err := query.First(&agent).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logging.Error().Add(logging.Component("auth")).Add(logging.ErrorField(err)).Msg("load agent")
		}
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Invalid credentials!", nil)
	}

	now := time.Now()

	// Check if the agent is blocked
	if agent.IsBlocked && agent.BlockedUntil != nil && agent.BlockedUntil.After(now) {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Your account is temporarily blocked. Try again later.", nil)
	}
	if agent.LastFailedLogin != nil && now.Sub(*agent.LastFailedLogin) > failedLoginWindow {
		agent.FailedLoginAttempts = 0
		agent.LastFailedLogin = nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(agent.Password), []byte(reqData.Password)); err != nil {
		agent.FailedLoginAttempts++
		agent.LastFailedLogin = &now
		if agent.FailedLoginAttempts >= maxFailedLogins {
			until := now.Add(blockDuration)
			agent.IsBlocked = true
			agent.BlockedUntil = &until
		}
		if err := db.Save(&agent).Error; err != nil {
			logging.Error().Add(logging.Component("auth")).Add(logging.ErrorField(err)).Msg("record failed login")
		}
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Invalid credentials!", nil)
	}

	agent.LastLogin = &now
	agent.FailedLoginAttempts = 0
	agent.LastFailedLogin = nil
	agent.IsBlocked = false
	agent.BlockedUntil = nil
	if err := db.Save(&agent).Error; err != nil {
		logging.Error().Add(logging.Component("auth")).Add(logging.ErrorField(err)).Msg("save last login")
	}

	ip := c.IP()
	if forwarded := c.Get("X-Forwarded-For"); forwarded != "" {
		ip = forwarded
	}
	tracking := models.LoginTracking{AgentID: agent.ID, IPAddress: ip, Device: c.Get("User-Agent"), Timestamp: now}
	if err := db.Create(&tracking).Error; err != nil {
		logging.Error().Add(logging.Component("auth")).Add(logging.ErrorField(err)).Msg("save login tracking")
	}

	token, err := middleware.GenerateJWT(agent.ID, agent.Name, agent.Role, agent.Email, config.AppConfig.JWTKey)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to generate token", nil)
	}

	logging.Info().
		Add(logging.Component("auth")).
		Add(logging.Str("email", agent.Email)).
		Add(logging.Str("ip", ip)).
		Msg("agent logged in")

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Login successful.", fiber.Map{
		"agent": agent,
		"token": token,
	})
}

func LoginHistoryList(c *fiber.Ctx) error {
	agentID, ok := c.Locals(middleware.LocalAgentID).(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}
	reqData, ok := c.Locals(authValidator.LocalLoginHistory).(*authValidator.LoginHistoryRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	db := database.Database.Db
	query := db.Model(&models.LoginTracking{}).Where("agent_id = ?", agentID).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to load login history!", nil)
	}

	var history []models.LoginTracking
	if err := query.Order("timestamp DESC").
		Offset((reqData.Page - 1) * reqData.Limit).
		Limit(reqData.Limit).
		Find(&history).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to load login history!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Login History List.", fiber.Map{
		"loginTracking": history,
		"pagination": fiber.Map{
			"total": total,
			"page":  reqData.Page,
			"limit": reqData.Limit,
		},
	})
}
