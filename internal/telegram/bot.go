package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/malulos-pos/api/internal/database"
	"github.com/malulos-pos/api/internal/enum"
	"github.com/malulos-pos/api/internal/service"
)

const sessionTTL = 30 * time.Minute

// Store defines the database methods the bot needs.
// Satisfied by *database.Queries; narrow interface for testability.
type Store interface {
	GetCustomerByTelegramChatID(ctx context.Context, chatID int64) (database.Customer, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (database.Customer, error)
	CreateCustomer(ctx context.Context, arg database.CreateCustomerParams) (database.Customer, error)
	ListCategories(ctx context.Context, onlyActive bool) ([]database.Category, error)
	ListProducts(ctx context.Context, arg database.ListProductsParams) ([]database.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
}

// OrderCreator is the slice of the order service the bot uses.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
}

// API is the slice of the Telegram client the bot talks through.
// Satisfied by *tgbotapi.BotAPI.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot runs the customer-facing Telegram ordering flow and delivers
// order status notifications. Also implements the order service's
// Notifier.
type Bot struct {
	api      API
	client   *tgbotapi.BotAPI
	store    Store
	orders   OrderCreator
	sessions *SessionStore
}

// New connects to the Telegram API with the given token.
func New(token string, store Store, orders OrderCreator) (*Bot, error) {
	client, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	b := NewWithAPI(client, store, orders)
	b.client = client
	return b, nil
}

// NewWithAPI builds a bot around an existing API client. Used by tests.
func NewWithAPI(api API, store Store, orders OrderCreator) *Bot {
	return &Bot{
		api:      api,
		store:    store,
		orders:   orders,
		sessions: NewSessionStore(sessionTTL),
	}
}

// Run polls for updates until ctx is cancelled. Only valid on bots
// built with New.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.client.GetUpdatesChan(u)

	log.Printf("telegram bot started: @%s", b.client.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.client.StopReceivingUpdates()
			b.sessions.Close()
			return
		case update := <-updates:
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate dispatches one Telegram update through the conversation
// state machine.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	session := b.sessions.Get(chatID)
	text := strings.TrimSpace(msg.Text)

	switch text {
	case "/start":
		b.startChat(ctx, chatID, session)
		return
	case "/cancel":
		session.ResetOrder()
		b.send(chatID, "Pedido cancelado. Escribe /menu para empezar de nuevo.")
		return
	case "/menu":
		if session.CustomerID == "" {
			b.startChat(ctx, chatID, session)
			return
		}
		session.ResetOrder()
		b.sendCategories(ctx, chatID)
		return
	}

	switch session.State {
	case StateRegisterName:
		if text == "" {
			b.send(chatID, "Necesito tu nombre para continuar.")
			return
		}
		session.Name = text
		session.State = StateRegisterPhone
		b.send(chatID, "Gracias, "+text+". Ahora tu número de teléfono:")

	case StateRegisterPhone:
		if len(text) < 7 {
			b.send(chatID, "Ese teléfono no parece válido, intenta de nuevo.")
			return
		}
		session.Phone = text
		session.State = StateRegisterAddress
		b.send(chatID, "Perfecto. ¿Cuál es tu dirección de entrega?")

	case StateRegisterAddress:
		if text == "" {
			b.send(chatID, "Necesito una dirección para el domicilio.")
			return
		}
		session.Address = text
		b.registerCustomer(ctx, chatID, session)

	case StateAwaitingNote:
		if text != "-" && text != "/skip" {
			session.Note = text
		}
		session.State = StateAwaitingPayment
		b.sendPaymentMethods(chatID)

	default:
		b.send(chatID, "Escribe /menu para ver la carta o /start para comenzar.")
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// Ack first so the client stops showing the spinner.
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("ERROR: telegram callback ack: %v", err)
	}

	chatID := cb.Message.Chat.ID
	session := b.sessions.Get(chatID)
	data := cb.Data

	switch {
	case data == "cat:back":
		b.sendCategories(ctx, chatID)

	case strings.HasPrefix(data, "cat:"):
		b.sendProducts(ctx, chatID, strings.TrimPrefix(data, "cat:"))

	case strings.HasPrefix(data, "add:"):
		b.addToCart(ctx, chatID, session, strings.TrimPrefix(data, "add:"))

	case data == "checkout":
		if len(session.Cart) == 0 {
			b.send(chatID, "Tu carrito está vacío. Escribe /menu para ver la carta.")
			return
		}
		session.State = StateAwaitingNote
		b.send(chatID, "¿Alguna nota para la cocina? Responde con el texto, o \"-\" para omitir.")

	case data == "clear":
		session.ResetOrder()
		b.send(chatID, "Carrito vacío. Escribe /menu para empezar de nuevo.")

	case strings.HasPrefix(data, "pay:"):
		b.placeOrder(ctx, chatID, session, strings.TrimPrefix(data, "pay:"))
	}
}

// startChat greets a known customer or begins registration.
func (b *Bot) startChat(ctx context.Context, chatID int64, session *Session) {
	customer, err := b.store.GetCustomerByTelegramChatID(ctx, chatID)
	if err == nil {
		session.CustomerID = customer.ID.String()
		session.ResetOrder()
		b.send(chatID, "¡Hola de nuevo, "+customer.Name+"!")
		b.sendCategories(ctx, chatID)
		return
	}

	session.State = StateRegisterName
	b.send(chatID, "¡Bienvenido a Malulos! Para hacer tu pedido necesito unos datos. ¿Cuál es tu nombre?")
}

func (b *Bot) registerCustomer(ctx context.Context, chatID int64, session *Session) {
	customer, err := b.store.CreateCustomer(ctx, database.CreateCustomerParams{
		Name:           session.Name,
		Phone:          session.Phone,
		Address:        pgtype.Text{String: session.Address, Valid: true},
		TelegramChatID: pgtype.Int8{Int64: chatID, Valid: true},
	})
	if err != nil {
		log.Printf("ERROR: telegram register customer: %v", err)
		b.send(chatID, "No pude guardar tus datos, intenta de nuevo con /start.")
		session.State = StateIdle
		return
	}

	session.CustomerID = customer.ID.String()
	session.ResetOrder()
	b.send(chatID, "¡Listo, "+customer.Name+"! Ya puedes pedir.")
	b.sendCategories(ctx, chatID)
}

func (b *Bot) sendCategories(ctx context.Context, chatID int64) {
	categories, err := b.store.ListCategories(ctx, true)
	if err != nil {
		log.Printf("ERROR: telegram list categories: %v", err)
		b.send(chatID, "No pude cargar el menú, intenta más tarde.")
		return
	}
	if len(categories) == 0 {
		b.send(chatID, "El menú no está disponible en este momento.")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, cat := range categories {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(cat.Name, "cat:"+cat.ID.String()),
		))
	}

	msg := tgbotapi.NewMessage(chatID, "¿Qué te provoca hoy?")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("ERROR: telegram send categories: %v", err)
	}
}

func (b *Bot) sendProducts(ctx context.Context, chatID int64, categoryID string) {
	catUUID, err := uuid.Parse(categoryID)
	if err != nil {
		return
	}

	products, err := b.store.ListProducts(ctx, database.ListProductsParams{
		CategoryID:    pgtype.UUID{Bytes: catUUID, Valid: true},
		OnlyAvailable: true,
	})
	if err != nil {
		log.Printf("ERROR: telegram list products: %v", err)
		b.send(chatID, "No pude cargar los productos, intenta más tarde.")
		return
	}
	if len(products) == 0 {
		b.send(chatID, "No hay productos disponibles en esta categoría.")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range products {
		label := fmt.Sprintf("%s — $%s", p.Name, numericToDecimal(p.Price).StringFixed(0))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "add:"+p.ID.String()),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🛒 Finalizar pedido", "checkout"),
	))

	msg := tgbotapi.NewMessage(chatID, "Toca un producto para agregarlo:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("ERROR: telegram send products: %v", err)
	}
}

func (b *Bot) addToCart(ctx context.Context, chatID int64, session *Session, productID string) {
	pid, err := uuid.Parse(productID)
	if err != nil {
		return
	}

	product, err := b.store.GetProduct(ctx, pid)
	if err != nil || !product.IsAvailable {
		b.send(chatID, "Ese producto ya no está disponible.")
		return
	}

	session.AddItem(CartItem{
		ProductID:   product.ID.String(),
		ProductName: product.Name,
		UnitPrice:   numericToDecimal(product.Price),
		Quantity:    1,
	})
	session.State = StateBrowsing
	b.sendCartSummary(chatID, session)
}

func (b *Bot) sendCartSummary(chatID int64, session *Session) {
	var sb strings.Builder
	sb.WriteString("Tu pedido:\n")
	for _, item := range session.Cart {
		fmt.Fprintf(&sb, "• %dx %s — $%s\n", item.Quantity, item.ProductName,
			item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity)).StringFixed(0))
	}
	fmt.Fprintf(&sb, "\nTotal: $%s", session.CartTotal().StringFixed(0))

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Seguir pidiendo", "cat:back"),
			tgbotapi.NewInlineKeyboardButtonData("✅ Finalizar", "checkout"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Vaciar carrito", "clear"),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("ERROR: telegram send cart: %v", err)
	}
}

// telegramPayMethods are the methods a delivery customer can announce.
// Card needs the physical terminal, so it stays POS-only.
var telegramPayMethods = []string{
	enum.PaymentMethodCash,
	enum.PaymentMethodTransfer,
	enum.PaymentMethodNequi,
	enum.PaymentMethodDaviplata,
}

func (b *Bot) sendPaymentMethods(chatID int64) {
	var buttons []tgbotapi.InlineKeyboardButton
	for _, method := range telegramPayMethods {
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(method, "pay:"+method))
	}

	msg := tgbotapi.NewMessage(chatID, "¿Cómo vas a pagar?")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(buttons[:2]...),
		tgbotapi.NewInlineKeyboardRow(buttons[2:]...),
	)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("ERROR: telegram send payment methods: %v", err)
	}
}

func (b *Bot) placeOrder(ctx context.Context, chatID int64, session *Session, method string) {
	if !enum.IsValidPaymentMethod(method) || len(session.Cart) == 0 {
		b.send(chatID, "Algo salió mal, escribe /menu para empezar de nuevo.")
		session.ResetOrder()
		return
	}

	items := make([]service.CreateOrderItemRequest, len(session.Cart))
	for i, item := range session.Cart {
		items[i] = service.CreateOrderItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}

	// Payment is settled by the cashier on delivery; the announced
	// method rides along in the note.
	note := "Pago: " + method
	if session.Note != "" {
		note = session.Note + " | " + note
	}

	result, err := b.orders.CreateOrder(ctx, service.CreateOrderRequest{
		Channel:    enum.ChannelDelivery,
		Origin:     enum.OriginTelegram,
		CustomerID: session.CustomerID,
		Note:       note,
		Items:      items,
	})
	if err != nil {
		log.Printf("ERROR: telegram create order: %v", err)
		b.send(chatID, "No pude crear tu pedido, intenta de nuevo en un momento.")
		return
	}

	total := numericToDecimal(result.Order.Total)
	b.send(chatID, fmt.Sprintf(
		"¡Pedido %s recibido! Total: $%s.\nTe avisaré cuando esté confirmado.",
		result.Order.OrderNumber, total.StringFixed(0)))
	session.ResetOrder()
}

// statusMessages maps order statuses to customer-facing notifications.
// Order numbers already carry the leading "#".
var statusMessages = map[string]string{
	enum.OrderStatusConfirmed: "✅ Tu pedido %s fue confirmado, ya lo estamos preparando.",
	enum.OrderStatusPreparing: "👨‍🍳 Tu pedido %s está en la cocina.",
	enum.OrderStatusReady:     "🍽 Tu pedido %s está listo.",
	enum.OrderStatusOnTheWay:  "🛵 Tu pedido %s va en camino.",
	enum.OrderStatusDelivered: "📦 Tu pedido %s fue entregado. ¡Buen provecho!",
	enum.OrderStatusCancelled: "❌ Tu pedido %s fue cancelado. Escríbenos si tienes dudas.",
}

// NotifyOrderStatus implements the order service's Notifier: it sends
// the customer a status update for their order. Failures are logged
// and swallowed, transitions never depend on Telegram being up.
func (b *Bot) NotifyOrderStatus(ctx context.Context, order database.Order) {
	if !order.CustomerID.Valid {
		return
	}

	template, ok := statusMessages[order.Status]
	if !ok {
		return
	}

	customer, err := b.store.GetCustomer(ctx, uuid.UUID(order.CustomerID.Bytes))
	if err != nil {
		log.Printf("ERROR: telegram notify lookup customer: %v", err)
		return
	}
	if !customer.TelegramChatID.Valid {
		return
	}

	b.send(customer.TelegramChatID.Int64, fmt.Sprintf(template, order.OrderNumber))
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("ERROR: telegram send: %v", err)
	}
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
