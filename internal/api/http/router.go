package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-engine/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-engine/internal/auth"
	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Assignments    *handlers.AssignmentsHandler
	Quotations     *handlers.QuotationsHandler
	Rules          *handlers.RulesHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)

	tickets := api.Group("/tickets")
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/transition", cfg.Tickets.Transition)
	tickets.Post("/:id/approval",
		auth.RequireActorType(domain.ActorTypeBackOffice), cfg.Tickets.Approve)
	tickets.Get("/:id/timeline", cfg.Tickets.Timeline)

	assignments := tickets.Group("/:ticketID/assignments",
		auth.RequireActorType(domain.ActorTypeBackOffice, domain.ActorTypeTechnician))
	assignments.Post("", cfg.Assignments.Offer)
	assignments.Post("/:assignmentID/accept", cfg.Assignments.Accept)
	assignments.Post("/:assignmentID/decline", cfg.Assignments.Decline)
	assignments.Post("/:assignmentID/reschedule", cfg.Assignments.Reschedule)

	quotations := tickets.Group("/:ticketID/quotations")
	quotations.Post("", auth.RequireActorType(domain.ActorTypeBackOffice), cfg.Quotations.Create)
	quotations.Post("/:quotationID/items", auth.RequireActorType(domain.ActorTypeBackOffice), cfg.Quotations.AddItem)
	quotations.Delete("/:quotationID/items/:itemID", auth.RequireActorType(domain.ActorTypeBackOffice), cfg.Quotations.RemoveItem)
	quotations.Put("/:quotationID/tax-rate", auth.RequireActorType(domain.ActorTypeBackOffice), cfg.Quotations.SetTaxRate)
	quotations.Post("/:quotationID/send", auth.RequireActorType(domain.ActorTypeBackOffice), cfg.Quotations.Send)
	quotations.Post("/:quotationID/respond", cfg.Quotations.Respond)
	quotations.Post("/:quotationID/expire", auth.RequireActorType(domain.ActorTypeBackOffice), cfg.Quotations.Expire)

	rules := api.Group("/rules", auth.RequireActorType(domain.ActorTypeBackOffice))
	rules.Post("", cfg.Rules.Create)
	rules.Put("/:id", cfg.Rules.Update)
	rules.Get("", cfg.Rules.List)
}
