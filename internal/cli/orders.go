package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pamperito/internal/config"
	"github.com/roach88/pamperito/internal/delivery"
	"github.com/roach88/pamperito/internal/domain"
	"github.com/roach88/pamperito/internal/messenger"
	"github.com/roach88/pamperito/internal/store"
)

// OrdersOptions holds flags shared by the orders subcommands.
type OrdersOptions struct {
	*RootOptions
	Database string
	Phone    string
	Limit    int
}

// orderView is the JSON shape of an order.
type orderView struct {
	ID             string                 `json:"id"`
	From           string                 `json:"from"`
	Status         domain.Status          `json:"status"`
	DeliveryStatus domain.DeliveryStatus  `json:"delivery_status"`
	Total          string                 `json:"total"`
	Items          []domain.CartItem      `json:"items"`
	Address        string                 `json:"address,omitempty"`
	Delivery       *domain.DeliveryWindow `json:"delivery,omitempty"`
	Meta           domain.Meta            `json:"meta,omitempty"`
	CreatedAt      string                 `json:"created_at"`
}

func newOrderView(o *domain.Order) orderView {
	return orderView{
		ID:             o.ID,
		From:           o.From,
		Status:         o.Status,
		DeliveryStatus: o.DeliveryStatus,
		Total:          o.Total.String(),
		Items:          o.Parsed.Items,
		Address:        o.Parsed.Address,
		Delivery:       o.Parsed.Delivery,
		Meta:           o.Meta,
		CreatedAt:      o.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// NewOrdersCommand creates the orders command group.
func NewOrdersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OrdersOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect and update orders",
		Long: `Inspect orders and move them through delivery from the shell.

Status changes notify the customer and the admin exactly like the admin
buttons in WhatsApp.

Examples:
  pamperito orders show PAM-1712345678901
  pamperito orders list --phone 5493462111111
  pamperito orders deliver PAM-1712345678901 in_delivery
  pamperito orders paid PAM-1712345678901`,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	show := &cobra.Command{
		Use:   "show <order-id>",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrdersShow(opts, args[0], cmd)
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List a customer's orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrdersList(opts, cmd)
		},
	}
	list.Flags().StringVar(&opts.Phone, "phone", "", "customer phone (required)")
	list.Flags().IntVar(&opts.Limit, "limit", 10, "maximum orders to list")
	_ = list.MarkFlagRequired("phone")

	deliver := &cobra.Command{
		Use:   "deliver <order-id> <in_delivery|delivered>",
		Short: "Advance an order's delivery status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrdersDeliver(opts, args[0], args[1], cmd)
		},
	}

	paid := &cobra.Command{
		Use:   "paid <order-id>",
		Short: "Confirm a payment received outside MercadoPago",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrdersPaid(opts, args[0], cmd)
		},
	}

	cmd.AddCommand(show, list, deliver, paid)
	return cmd
}

// openStore opens the configured database for the maintenance commands.
func openStore(opts *RootOptions, dbOverride string) (*store.Store, *config.Config, error) {
	cfg, err := loadConfig(opts, dbOverride)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, cfg, nil
}

func runOrdersShow(opts *OrdersOptions, id string, cmd *cobra.Command) error {
	st, _, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	out := newFormatter(opts.RootOptions, cmd)
	order, err := st.GetOrder(cmd.Context(), id)
	if err != nil {
		return reportError(out, "E_ORDER", orderError(id, err))
	}

	if opts.Format == "json" {
		return out.Success(newOrderView(order))
	}
	return out.Success(describeOrder(order))
}

func runOrdersList(opts *OrdersOptions, cmd *cobra.Command) error {
	st, _, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	orders, err := st.ListOrdersByCustomer(cmd.Context(), opts.Phone, opts.Limit)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list orders", err)
	}

	out := newFormatter(opts.RootOptions, cmd)
	if opts.Format == "json" {
		views := make([]orderView, 0, len(orders))
		for i := range orders {
			views = append(views, newOrderView(&orders[i]))
		}
		return out.Success(views)
	}
	if len(orders) == 0 {
		return out.Success(fmt.Sprintf("No orders for %s.", opts.Phone))
	}
	lines := make([]string, 0, len(orders))
	for i := range orders {
		lines = append(lines, describeOrder(&orders[i]))
	}
	return out.Success(strings.Join(lines, "\n"))
}

func runOrdersDeliver(opts *OrdersOptions, id, status string, cmd *cobra.Command) error {
	target, err := domain.ParseDeliveryStatus(status)
	if err != nil || target == domain.DeliveryPending {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid delivery status %q: must be in_delivery or delivered", status))
	}

	st, cfg, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	d := newDispatcher(opts.RootOptions, cfg, st, cmd)
	order, err := d.SetStatus(cmd.Context(), id, target)
	if err != nil {
		return reportError(newFormatter(opts.RootOptions, cmd), "E_ORDER", orderError(id, err))
	}
	return reportOrder(opts, order, cmd)
}

func runOrdersPaid(opts *OrdersOptions, id string, cmd *cobra.Command) error {
	st, cfg, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	d := newDispatcher(opts.RootOptions, cfg, st, cmd)
	order, err := d.ConfirmPayment(cmd.Context(), id)
	if err != nil {
		return reportError(newFormatter(opts.RootOptions, cmd), "E_ORDER", orderError(id, err))
	}
	return reportOrder(opts, order, cmd)
}

// newDispatcher notifies through WhatsApp when a token is configured and
// only logs otherwise.
func newDispatcher(opts *RootOptions, cfg *config.Config, st *store.Store, cmd *cobra.Command) *delivery.Dispatcher {
	logger := newLogger(opts, cmd.ErrOrStderr())
	var msgr messenger.Messenger = messenger.LogOnly{Logger: logger}
	if cfg.WhatsApp.Enabled() {
		msgr = messenger.NewWhatsApp(messenger.Config{
			GraphBase:     cfg.WhatsApp.GraphBase,
			Version:       cfg.WhatsApp.Version,
			PhoneID:       cfg.WhatsApp.PhoneID,
			Token:         cfg.WhatsApp.Token,
			RatePerSecond: cfg.WhatsApp.RatePerSecond,
			Burst:         cfg.WhatsApp.Burst,
		})
	}
	return delivery.NewDispatcher(st, st, msgr, cfg.Business.AdminPhone, logger.With(slog.String("source", "cli")))
}

func reportOrder(opts *OrdersOptions, order *domain.Order, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)
	if opts.Format == "json" {
		return out.Success(newOrderView(order))
	}
	return out.Success(describeOrder(order))
}

func orderError(id string, err error) error {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		return WrapExitError(ExitCommandError, fmt.Sprintf("order %s not found", id), err)
	case errors.Is(err, domain.ErrInvalidStatus):
		return WrapExitError(ExitFailure, fmt.Sprintf("order %s rejected the status change", id), err)
	default:
		return WrapExitError(ExitFailure, fmt.Sprintf("order %s", id), err)
	}
}

// describeOrder renders an order for text output.
func describeOrder(o *domain.Order) string {
	s := fmt.Sprintf("%s  %s  %s/%s  total %s", o.ID, o.From, o.Status, o.DeliveryStatus, domain.FormatMoney(o.Total))
	for _, it := range o.Parsed.Items {
		s += fmt.Sprintf("\n  %d x %s", it.Quantity, it.Label)
	}
	if o.Parsed.Address != "" {
		s += "\n  address: " + o.Parsed.Address
	}
	if d := o.Parsed.Delivery; d != nil {
		s += fmt.Sprintf("\n  delivery: %s %s", d.DayLabel, d.SlotLabel)
	}
	return s
}
