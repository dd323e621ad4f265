package apicontrollers

import (
	"net/http"

	"github.com/parleychat/parley/internal/domain/entities"
	"github.com/parleychat/parley/internal/domain/errs"
	"github.com/parleychat/parley/internal/domain/services"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type TurnController struct {
	logger      *zap.Logger
	chatService services.ChatService
}

func NewTurnController(logger *zap.Logger, chatService services.ChatService) *TurnController {
	return &TurnController{
		logger:      logger,
		chatService: chatService,
	}
}

// RegisterRoutes registers all turn-related routes with Echo
func (c *TurnController) RegisterRoutes(e *echo.Group) {
	e.GET("/chats/:id/turns", c.GetTurns)
	e.POST("/chats/:id/messages", c.SendMessage)
	e.POST("/chats/:id/reconcile", c.Reconcile)
	e.PUT("/chats/:id/messages/:messageId", c.EditMessage)
	e.DELETE("/chats/:id/models/:modelId", c.StopModel)
}

type turnDTO struct {
	UserMessage entities.Message         `json:"user_message"`
	Asked       string                   `json:"asked,omitempty"`
	Responses   []entities.ModelResponse `json:"responses"`
}

func toTurnDTOs(turns []entities.Turn) []turnDTO {
	dtos := make([]turnDTO, len(turns))
	for i, turn := range turns {
		dtos[i] = turnDTO{
			UserMessage: turn.UserMessage,
			Responses:   turn.Responses,
		}
		if turn.UserMessage.Persisted() {
			dtos[i].Asked = humanize.Time(turn.UserMessage.CreatedAt)
		}
	}
	return dtos
}

func (c *TurnController) GetTurns(ctx echo.Context) error {
	id := ctx.Param("id")
	if id == "" {
		return c.handleError(ctx, "Missing chat ID", http.StatusBadRequest)
	}

	turns := c.chatService.GetTurns(ctx.Request().Context(), id)
	return ctx.JSON(http.StatusOK, toTurnDTOs(turns))
}

func (c *TurnController) SendMessage(ctx echo.Context) error {
	id := ctx.Param("id")
	if id == "" {
		return c.handleError(ctx, "Missing chat ID", http.StatusBadRequest)
	}

	var input struct {
		Prompt string   `json:"prompt"`
		Models []string `json:"models"`
	}
	if err := ctx.Bind(&input); err != nil {
		return c.handleError(ctx, "Invalid request body", http.StatusBadRequest)
	}

	groupID, err := c.chatService.SendToModels(ctx.Request().Context(), id, input.Prompt, input.Models)
	if err != nil {
		switch err.(type) {
		case *errs.ValidationError:
			return c.handleError(ctx, err, http.StatusBadRequest)
		default:
			return c.handleError(ctx, err, http.StatusInternalServerError)
		}
	}

	return ctx.JSON(http.StatusAccepted, map[string]string{"group_id": groupID})
}

func (c *TurnController) Reconcile(ctx echo.Context) error {
	id := ctx.Param("id")
	if id == "" {
		return c.handleError(ctx, "Missing chat ID", http.StatusBadRequest)
	}

	c.chatService.Reconcile(ctx.Request().Context(), id)
	return ctx.NoContent(http.StatusNoContent)
}

func (c *TurnController) EditMessage(ctx echo.Context) error {
	id := ctx.Param("id")
	messageID := ctx.Param("messageId")
	if id == "" || messageID == "" {
		return c.handleError(ctx, "Missing chat or message ID", http.StatusBadRequest)
	}

	var input struct {
		Content string   `json:"content"`
		Models  []string `json:"models"`
	}
	if err := ctx.Bind(&input); err != nil {
		return c.handleError(ctx, "Invalid request body", http.StatusBadRequest)
	}

	groupID, err := c.chatService.EditMessage(ctx.Request().Context(), id, messageID, input.Content, input.Models)
	if err != nil {
		switch err.(type) {
		case *errs.NotFoundError:
			return c.handleError(ctx, "Message not found", http.StatusNotFound)
		case *errs.ValidationError:
			return c.handleError(ctx, err, http.StatusBadRequest)
		default:
			return c.handleError(ctx, err, http.StatusInternalServerError)
		}
	}

	return ctx.JSON(http.StatusAccepted, map[string]string{"group_id": groupID})
}

func (c *TurnController) StopModel(ctx echo.Context) error {
	id := ctx.Param("id")
	modelID := ctx.Param("modelId")
	if id == "" || modelID == "" {
		return c.handleError(ctx, "Missing chat or model ID", http.StatusBadRequest)
	}

	c.chatService.StopModel(id, modelID)
	return ctx.NoContent(http.StatusNoContent)
}

func (c *TurnController) handleError(ctx echo.Context, message any, status int) error {
	switch m := message.(type) {
	case error:
		c.logger.Warn("Request failed", zap.Int("status", status), zap.Error(m))
		return ctx.JSON(status, map[string]string{"error": m.Error()})
	default:
		return ctx.JSON(status, map[string]any{"error": message})
	}
}
