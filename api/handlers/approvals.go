package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	apierrors "github.com/pawpal/petmail/api/errors"
	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/models"
	"github.com/pawpal/petmail/internal/tracing"
)

type ApprovalsHandler struct {
	approvals interfaces.ApprovalService
	log       logger.Logger
}

func NewApprovalsHandler(approvals interfaces.ApprovalService, log logger.Logger) *ApprovalsHandler {
	return &ApprovalsHandler{approvals: approvals, log: log}
}

type ListApprovalsResponse struct {
	PetID     string                    `json:"petId"`
	Approvals []*models.PendingApproval `json:"approvals"`
}

func (h *ApprovalsHandler) ListPending() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "ApprovalsHandler.ListPending")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		petID := c.Param("petId")
		tracing.TagPet(span, petID)

		approvals, err := h.approvals.ListPending(ctx, petID)
		if err != nil {
			tracing.TraceErr(span, err)
			code, body := apierrors.NewErrorResponse(err)
			c.JSON(code, body)
			return
		}
		if approvals == nil {
			approvals = []*models.PendingApproval{}
		}

		c.JSON(http.StatusOK, ListApprovalsResponse{PetID: petID, Approvals: approvals})
	}
}

func (h *ApprovalsHandler) Approve() gin.HandlerFunc {
	return h.decide("ApprovalsHandler.Approve", h.approvals.Approve)
}

func (h *ApprovalsHandler) Reject() gin.HandlerFunc {
	return h.decide("ApprovalsHandler.Reject", h.approvals.Reject)
}

func (h *ApprovalsHandler) decide(operation string, resolve func(ctx context.Context, approvalID string) (*dto.ApprovalDecision, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), operation)
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		approvalID := c.Param("id")
		tracing.TagEntity(span, approvalID)

		decision, err := resolve(ctx, approvalID)
		if err != nil {
			tracing.TraceErr(span, err)
			code, body := apierrors.NewErrorResponse(err)
			if code == http.StatusInternalServerError {
				h.log.Errorf("%s %s failed: %v", operation, approvalID, err)
			}
			c.JSON(code, body)
			return
		}

		h.log.Infof("approval %s resolved as %s for sender %s", decision.ApprovalID, decision.Status, decision.SenderEmail)
		c.JSON(http.StatusOK, decision)
	}
}
