package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	query := dto.TicketListQuery{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Category: c.Query("category"),
		Page:     c.QueryInt("page", 1),
	}

	page, err := h.service.List(c.UserContext(), user, service.TicketListFilter{
		Status:   query.Status,
		Priority: query.Priority,
		Category: query.Category,
		Page:     query.Page,
	})
	if err != nil {
		return err
	}

	items := make([]dto.TicketResponse, 0, len(page.Data))
	for i := range page.Data {
		items = append(items, h.ticketResponse(&page.Data[i]))
	}
	return c.JSON(dto.TicketPageResponse{
		Data: items,
		Meta: dto.PageMeta{
			CurrentPage: page.CurrentPage,
			PerPage:     page.PerPage,
			Total:       page.Total,
			LastPage:    page.LastPage,
		},
	})
}

// CreateTicket POST /tickets. Accepts JSON or multipart with an "attachment" file.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}

	var req dto.CreateTicketRequest
	var file *upload
	if isMultipart(c) {
		form, err := multipartForm(c)
		if err != nil {
			return err
		}
		req = dto.CreateTicketRequest{
			Subject:     formString(form, "subject"),
			Description: formString(form, "description"),
			Category:    formString(form, "category"),
			Priority:    formString(form, "priority"),
			Status:      formString(form, "status"),
		}
		if file, err = formUpload(form); err != nil {
			return err
		}
		defer file.Close()
	} else if err := parseBody(c, &req); err != nil {
		return err
	}

	ticket, err := h.service.Create(c.UserContext(), user, service.TicketCreateInput{
		Subject:     req.Subject,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		Status:      req.Status,
	}, file.value())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "Ticket created successfully",
		"data":    h.ticketResponse(ticket),
	})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	detail, err := h.service.Get(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketDetailResponse{
		TicketResponse: h.ticketResponse(detail.Ticket),
		Comments:       dto.NewCommentResponses(detail.Comments),
		Chats:          dto.NewChatResponses(detail.Chats),
		History:        dto.NewHistoryResponses(detail.History),
	}})
}

// UpdateTicket PUT|PATCH /tickets/:id. Only supplied fields change.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}

	var req dto.UpdateTicketRequest
	var file *upload
	if isMultipart(c) {
		form, err := multipartForm(c)
		if err != nil {
			return err
		}
		req = dto.UpdateTicketRequest{
			Subject:     formValue(form, "subject"),
			Description: formValue(form, "description"),
			Category:    formValue(form, "category"),
			Priority:    formValue(form, "priority"),
			Status:      formValue(form, "status"),
		}
		if file, err = formUpload(form); err != nil {
			return err
		}
		defer file.Close()
	} else if err := parseBody(c, &req); err != nil {
		return err
	}

	ticket, err := h.service.Update(c.UserContext(), user, c.Params("id"), service.TicketUpdateInput{
		Subject:     req.Subject,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		Status:      req.Status,
	}, file.value())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Ticket updated successfully",
		"data":    h.ticketResponse(ticket),
	})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), user, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Ticket deleted successfully"})
}

func (h *TicketsHandler) ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.NewTicketResponse(ticket, h.service.AttachmentURL(ticket))
}
