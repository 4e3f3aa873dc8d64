package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/barterhq/barterhq-backend/internal/modules/auth"
	"github.com/barterhq/barterhq-backend/internal/modules/catalog"
	"github.com/barterhq/barterhq-backend/internal/modules/checkout"
	"github.com/barterhq/barterhq-backend/internal/modules/integration"
	"github.com/barterhq/barterhq-backend/internal/modules/merchant"
	"github.com/barterhq/barterhq-backend/internal/modules/pos"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("no .env file found, relying on environment")
	}

	db, err := sql.Open("postgres", os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}
	fmt.Println("Successfully connected to the database!")

	jwtKey := []byte(os.Getenv("JWT_SECRET"))
	if len(jwtKey) == 0 {
		log.Fatal("JWT_SECRET is required")
	}

	cipher, err := integration.NewTokenCipher([]byte(os.Getenv("TOKEN_ENCRYPTION_KEY")))
	if err != nil {
		log.Fatal("TOKEN_ENCRYPTION_KEY: ", err)
	}

	// One outbound client with a hard deadline for every provider call.
	providerClient := &http.Client{Timeout: 15 * time.Second}

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)

	// ── Identity ────────────────────────────────────────────
	merchantRepo := merchant.NewPostgresRepository(db)
	merchantService := merchant.NewService(merchantRepo)
	merchantHandler := merchant.NewHandler(merchantService)
	merchantHandler.RegisterRoutes(router)

	authService := auth.NewService(merchantRepo, jwtKey)
	auth.NewHandler(authService).RegisterRoutes(router)

	// ── Checkout eligibility & payment calculation ──────────
	catalogRepo := catalog.NewPostgresRepository(db)
	matcher := checkout.NewMatcher(catalogRepo,
		checkout.UnmatchedItemPolicy(os.Getenv("UNMATCHED_ITEM_POLICY")))
	checkoutService := checkout.NewService(matcher)
	checkoutHandler := checkout.NewHandler(checkoutService)

	// ── Integrations & OAuth ────────────────────────────────
	integrationRepo := integration.NewPostgresRepository(db)
	tokenManager := integration.NewManager(integrationRepo, cipher, providerClient,
		oauthProviders(), envFloat("DEFAULT_BARTER_PERCENTAGE", 20))
	integrationHandler := integration.NewHandler(tokenManager, integrationRepo,
		os.Getenv("DASHBOARD_URL"))
	integrationHandler.RegisterRoutes(router)

	// ── Webhook gateway & outbound sync ─────────────────────
	registry := pos.NewRegistry(pos.DefaultBaseURLs())
	txRepo := pos.NewPostgresRepository(db)
	gateway := pos.NewGateway(registry, integrationRepo, txRepo, webhookSecrets(),
		os.Getenv("WEBHOOK_ALLOW_UNSIGNED") == "true")
	orchestrator := pos.NewOrchestrator(registry, txRepo, integrationRepo, tokenManager, providerClient)
	posHandler := pos.NewHandler(gateway, orchestrator, txRepo)
	posHandler.RegisterRoutes(router)

	// ── Authenticated API ───────────────────────────────────
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(jwtKey))
		merchantHandler.RegisterAuthedRoutes(r)
		checkoutHandler.RegisterRoutes(r)
		integrationHandler.RegisterAuthedRoutes(r)
		posHandler.RegisterAuthedRoutes(r)
	})

	// ── Start Server ─────────────────────────────────────────
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}
	fmt.Printf("BarterHQ API server starting on :%s\n", port)
	log.Fatal(http.ListenAndServe(":"+port, router))
}

func webhookSecrets() map[pos.Provider]string {
	return map[pos.Provider]string{
		pos.ProviderSquare:     os.Getenv("SQUARE_WEBHOOK_SECRET"),
		pos.ProviderShopify:    os.Getenv("SHOPIFY_WEBHOOK_SECRET"),
		pos.ProviderClover:     os.Getenv("CLOVER_VERIFICATION_TOKEN"),
		pos.ProviderToast:      os.Getenv("TOAST_WEBHOOK_SECRET"),
		pos.ProviderLightspeed: os.Getenv("LIGHTSPEED_WEBHOOK_SECRET"),
		pos.ProviderAdyen:      os.Getenv("ADYEN_HMAC_KEY"),
	}
}

func oauthProviders() map[string]integration.ProviderConfig {
	redirect := os.Getenv("OAUTH_REDIRECT_URI")
	return map[string]integration.ProviderConfig{
		"square": {
			ClientID:     os.Getenv("SQUARE_CLIENT_ID"),
			ClientSecret: os.Getenv("SQUARE_CLIENT_SECRET"),
			AuthorizeURL: "https://connect.squareup.com/oauth2/authorize",
			TokenURL:     "https://connect.squareup.com/oauth2/token",
			MerchantURL:  "https://connect.squareup.com/v2/locations",
			RedirectURI:  redirect,
			Scopes:       []string{"PAYMENTS_READ", "PAYMENTS_WRITE", "ORDERS_WRITE", "MERCHANT_PROFILE_READ"},
		},
		"shopify": {
			ClientID:     os.Getenv("SHOPIFY_CLIENT_ID"),
			ClientSecret: os.Getenv("SHOPIFY_CLIENT_SECRET"),
			AuthorizeURL: "https://{shop}/admin/oauth/authorize",
			TokenURL:     "https://{shop}/admin/oauth/access_token",
			MerchantURL:  "https://{shop}/admin/api/2024-01/shop.json",
			RedirectURI:  redirect,
			Scopes:       []string{"read_orders", "write_orders", "read_products"},
		},
		"clover": {
			ClientID:     os.Getenv("CLOVER_CLIENT_ID"),
			ClientSecret: os.Getenv("CLOVER_CLIENT_SECRET"),
			AuthorizeURL: "https://www.clover.com/oauth/authorize",
			TokenURL:     "https://www.clover.com/oauth/token",
			RedirectURI:  redirect,
		},
		"toast": {
			ClientID:     os.Getenv("TOAST_CLIENT_ID"),
			ClientSecret: os.Getenv("TOAST_CLIENT_SECRET"),
			AuthorizeURL: "https://ws-api.toasttab.com/authentication/v1/authorize",
			TokenURL:     "https://ws-api.toasttab.com/authentication/v1/token",
			MerchantURL:  "https://ws-api.toasttab.com/restaurants/v1/restaurants",
			RedirectURI:  redirect,
			Scopes:       []string{"orders:write", "restaurants:read"},
		},
		"lightspeed": {
			ClientID:     os.Getenv("LIGHTSPEED_CLIENT_ID"),
			ClientSecret: os.Getenv("LIGHTSPEED_CLIENT_SECRET"),
			AuthorizeURL: "https://cloud.lightspeedapp.com/oauth/authorize.php",
			TokenURL:     "https://cloud.lightspeedapp.com/oauth/access_token.php",
			MerchantURL:  "https://api.lightspeedapp.com/API/V3/Account.json",
			RedirectURI:  redirect,
			Scopes:       []string{"employee:all"},
		},
	}
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var f float64
	if _, err := fmt.Sscanf(v, "%f", &f); err != nil {
		return fallback
	}
	return f
}
