// Paybridge payment mediation service.
//
// This is the main entry point. It wires up all dependencies and starts
// the HTTP server.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/paybridge/paybridge/config"
	"github.com/paybridge/paybridge/internal/api"
	"github.com/paybridge/paybridge/internal/currency"
	"github.com/paybridge/paybridge/internal/gateway"
	"github.com/paybridge/paybridge/internal/gateway/binancepay"
	"github.com/paybridge/paybridge/internal/gateway/mercadopago"
	"github.com/paybridge/paybridge/internal/gateway/paypal"
	"github.com/paybridge/paybridge/internal/notify"
	"github.com/paybridge/paybridge/internal/order"
	"github.com/paybridge/paybridge/internal/signature"
	"github.com/paybridge/paybridge/internal/store"
)

func main() {
	log.Println("Starting Paybridge Payment Service...")

	// Load configuration
	cfg := config.Load()
	log.Printf("Configuration loaded: Port=%s, BaseURL=%s", cfg.Server.Port, cfg.Server.BaseURL)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Wire up dependencies (manual dependency injection)
	//
	// Infrastructure Layer
	orderStore, err := store.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Database error: %v", err)
	}

	requestSigner, err := signature.NewSigner(cfg.Merchant.RequestSecret)
	if err != nil {
		log.Fatalf("Signer error: %v", err)
	}
	callbackSigner, err := signature.NewSigner(cfg.Merchant.CallbackSecret)
	if err != nil {
		log.Fatalf("Signer error: %v", err)
	}

	converter := currency.NewConverter()
	registry := buildRegistry(cfg, converter)
	if len(registry.Names()) == 0 {
		log.Println("Warning: no payment gateways configured; orders cannot be processed")
	} else {
		log.Printf("Gateways registered: %v", registry.Names())
	}

	// Delivery Layer
	notifier := notify.NewNotifier(orderStore, callbackSigner, notify.Config{
		MaxAttempts: cfg.Notify.MaxAttempts,
		BaseDelay:   cfg.Notify.BaseDelay,
		Timeout:     cfg.Notify.Timeout,
	})
	dispatcher := notify.NewDispatcher(notifier, orderStore, cfg.Notify.Buffer)
	dispatcher.Start(cfg.Notify.Workers)

	// Service Layer
	orderService := order.NewService(orderStore, registry, requestSigner, dispatcher)

	// API Layer
	handler := api.NewHandler(orderService, cfg.Server.FrontendURL)
	router := api.SetupRouter(handler, cfg.Server.GinMode)

	// Start server in a goroutine
	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	go func() {
		log.Printf("Server listening on %s", serverAddr)
		if err := router.Run(serverAddr); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	dispatcher.Stop()
}

// buildRegistry registers every gateway whose credentials are present.
// Missing credentials disable a gateway with a warning instead of failing
// startup; the remaining gateways keep working.
func buildRegistry(cfg *config.Config, converter *currency.Converter) *gateway.Registry {
	registry := gateway.NewRegistry()
	baseURL := cfg.Server.BaseURL

	mpCountries := []struct {
		country  string
		currency string
		token    string
	}{
		{"AR", "ARS", cfg.MercadoPago.AccessTokenAR},
		{"MX", "MXN", cfg.MercadoPago.AccessTokenMX},
		{"CL", "CLP", cfg.MercadoPago.AccessTokenCL},
	}
	for _, mp := range mpCountries {
		if mp.token == "" {
			continue
		}
		adapter, err := mercadopago.NewAdapter(mp.country, mp.currency, mp.token, baseURL)
		if err != nil {
			log.Printf("Warning: MercadoPago %s disabled: %v", mp.country, err)
			continue
		}
		registry.Register(adapter)
	}

	if cfg.PayPal.ClientID != "" {
		adapter, err := paypal.NewAdapter(cfg.PayPal.ClientID, cfg.PayPal.Secret, cfg.PayPal.Mode, baseURL)
		if err != nil {
			log.Printf("Warning: PayPal disabled: %v", err)
		} else {
			registry.Register(adapter)
		}
	}

	if cfg.BinancePay.APIKey != "" {
		adapter, err := binancepay.NewAdapter(cfg.BinancePay.BaseURL, cfg.BinancePay.APIKey,
			cfg.BinancePay.SecretKey, baseURL, converter)
		if err != nil {
			log.Printf("Warning: Binance Pay disabled: %v", err)
		} else {
			registry.Register(adapter)
		}
	}

	return registry
}
