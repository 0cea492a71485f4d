package condo

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Routes bundles every condo resource handler
type Routes struct {
	Residents     *ResidentHandler
	Buildings     *Handler[Building, *Building]
	Apartments    *Handler[Apartment, *Apartment]
	Contracts     *Handler[Contract, *Contract]
	Invoices      *Handler[Invoice, *Invoice]
	Payments      *Handler[Payment, *Payment]
	Services      *Handler[Service, *Service]
	Subscriptions *Handler[Subscription, *Subscription]
	Notifications *Handler[Notification, *Notification]
	Self          *SelfService
}

// NewRoutes wires Postgres stores to their handlers
func NewRoutes(db *sqlx.DB, residents ResidentRepository, logger *zap.Logger) *Routes {
	invoices := NewStore[Invoice](db, InvoicesTable)
	notifications := NewStore[Notification](db, NotificationsTable)

	return &Routes{
		Residents:     NewResidentHandler(residents, logger),
		Buildings:     NewHandler[Building](NewStore[Building](db, BuildingsTable), logger),
		Apartments:    NewHandler[Apartment](NewStore[Apartment](db, ApartmentsTable), logger),
		Contracts:     NewHandler[Contract](NewStore[Contract](db, ContractsTable), logger),
		Invoices:      NewHandler[Invoice](invoices, logger),
		Payments:      NewHandler[Payment](NewStore[Payment](db, PaymentsTable), logger),
		Services:      NewHandler[Service](NewStore[Service](db, ServicesTable), logger),
		Subscriptions: NewHandler[Subscription](NewStore[Subscription](db, SubscriptionsTable), logger),
		Notifications: NewHandler[Notification](notifications, logger),
		Self:          NewSelfService(invoices, notifications, NewPaymentLedger(db), logger),
	}
}

// Mount registers the resource routes. authn must run first on every
// route; admin additionally gates everything except resident self-service.
func (r *Routes) Mount(router gin.IRouter, authn, admin gin.HandlerFunc) {
	me := router.Group("/residents/me", authn)
	{
		me.GET("/invoices", r.Self.MyInvoices)
		me.GET("/notifications", r.Self.MyNotifications)
	}

	router.POST("/payments", authn, r.Self.Pay)
	payments := router.Group("/payments", authn, admin)
	{
		payments.GET("", r.Payments.List)
		payments.GET("/:id", r.Payments.Get)
		payments.PUT("/:id", r.Payments.Update)
		payments.DELETE("/:id", r.Payments.Delete)
	}

	r.Residents.Mount(router.Group("/residents", authn, admin))
	r.Buildings.Mount(router.Group("/buildings", authn, admin))
	r.Apartments.Mount(router.Group("/apartments", authn, admin))
	r.Contracts.Mount(router.Group("/contracts", authn, admin))
	r.Invoices.Mount(router.Group("/invoices", authn, admin))
	r.Services.Mount(router.Group("/services", authn, admin))
	r.Subscriptions.Mount(router.Group("/subscriptions", authn, admin))
	r.Notifications.Mount(router.Group("/notifications", authn, admin))
}
