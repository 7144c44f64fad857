package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/example/storefront/internal/client/apiclient"
	"github.com/example/storefront/internal/client/cartstore"
	"github.com/example/storefront/internal/client/checkoutconfig"
	"github.com/example/storefront/internal/client/checkoutflow"
	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/checkout"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var errSignInRequired = errors.New("sign in first: shopper login --user <id> --token <jwt>")

func money(d decimal.Decimal) string { return d.StringFixed(2) }

// ============================================
// cart
// ============================================

func newCartCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show or change the cart",
	}
	cmd.AddCommand(
		newCartShowCmd(a),
		newCartAddCmd(a),
		newCartUpdateCmd(a),
		newCartRemoveCmd(a),
		newCartClearCmd(a),
	)
	return cmd
}

func newCartShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List cart lines and the cart summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.carts.Load(ctx); err != nil {
				return err
			}
			a.loadConfig(ctx)
			printCart(cmd.OutOrStdout(), a.carts, a.loader.State())
			return nil
		},
	}
}

func newCartAddCmd(a *app) *cobra.Command {
	var (
		quantity int
		variant  string
	)
	cmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := a.client.Product(ctx, args[0])
			if err != nil {
				return err
			}
			if err := a.carts.Load(ctx); err != nil {
				return err
			}
			return a.carts.AddToCart(ctx, *p, quantity, variant)
		},
	}
	cmd.Flags().IntVarP(&quantity, "quantity", "q", 1, "quantity to add")
	cmd.Flags().StringVar(&variant, "variant", "", "product variant, e.g. a size")
	return cmd
}

func newCartUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update <item-id> <quantity>",
		Short: "Set a line's quantity; 0 removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity must be a number: %w", err)
			}
			ctx := cmd.Context()
			if err := a.carts.Load(ctx); err != nil {
				return err
			}
			return a.carts.UpdateQuantity(ctx, args[0], quantity)
		},
	}
}

func newCartRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <item-id>",
		Short: "Remove a line from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.carts.Load(ctx); err != nil {
				return err
			}
			return a.carts.RemoveFromCart(ctx, args[0])
		},
	}
}

func newCartClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.carts.ClearCart(cmd.Context())
		},
	}
}

func printCart(w io.Writer, carts *cartstore.Service, cfg checkoutconfig.State) {
	items := carts.Items()
	if len(items) == 0 {
		fmt.Fprintln(w, "Your cart is empty.")
		return
	}
	for _, item := range items {
		variant := item.SelectedVariant
		if variant == "" {
			variant = "-"
		}
		fmt.Fprintf(w, "%-28s %-24s %-6s %3d x %8s\n",
			item.ID, item.Product.Title, variant, item.Quantity, money(item.Product.UnitPrice()))
	}
	summary := carts.Summary(cfg.TaxTable)
	fmt.Fprintf(w, "\nItems:    %d\n", carts.TotalItems())
	fmt.Fprintf(w, "Subtotal: %s\n", money(summary.Subtotal))
	fmt.Fprintf(w, "Tax:      %s\n", money(summary.Tax))
	fmt.Fprintln(w, "Shipping: decided during checkout")
	fmt.Fprintf(w, "Total:    %s\n", money(summary.Total))
}

// loadConfig hydrates the rate tables visible to the current session.
func (a *app) loadConfig(ctx context.Context) {
	if a.credentials.IsAuthenticated() {
		a.loader.SetAuthenticated(ctx, true)
		return
	}
	a.loader.Load(ctx)
}

// ============================================
// config
// ============================================

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show shipping methods, coupons, fees and tax brackets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.loadConfig(cmd.Context())
			printConfig(cmd.OutOrStdout(), a.loader.State(), a.credentials.IsAuthenticated())
			return nil
		},
	}
}

func printConfig(w io.Writer, s checkoutconfig.State, authenticated bool) {
	fmt.Fprintln(w, "Shipping methods:")
	for _, m := range s.ShippingMethods {
		fmt.Fprintf(w, "  %-12s %-24s %8s  %d days\n", m.ID, m.Name, money(m.Cost), m.EstimatedDays)
	}
	if !authenticated {
		fmt.Fprintln(w, "\nSign in to see coupons, fees and tax brackets.")
		printLoadErrors(w, s)
		return
	}

	fmt.Fprintln(w, "\nCoupons:")
	for _, c := range s.Coupons {
		fmt.Fprintf(w, "  %-12s %-10s %s\n", c.Code, c.DiscountType, c.DiscountValue)
	}
	if s.Fees != nil {
		fmt.Fprintf(w, "\nPayment fee: %s + %s of order (%s)\n", money(s.Fees.PaymentFee), s.Fees.PaymentFeeRate, s.Fees.Currency)
	}
	fmt.Fprintln(w, "\nTax brackets:")
	for _, r := range s.TaxTable.Rules() {
		fmt.Fprintf(w, "  %10s - %-10s %s\n", money(r.Min), money(r.Max), r.Rate)
	}
	printLoadErrors(w, s)
}

func printLoadErrors(w io.Writer, s checkoutconfig.State) {
	for r, err := range s.Errors {
		fmt.Fprintf(w, "\nwarning: %s unavailable: %v\n", r, err)
	}
}

// ============================================
// checkout
// ============================================

// sessionConfig loads the tables for a signed-in session when the flow
// configures itself.
type sessionConfig struct {
	*checkoutconfig.Loader
}

func (c sessionConfig) Load(ctx context.Context) { c.SetAuthenticated(ctx, true) }

func newCheckoutCmd(a *app) *cobra.Command {
	var (
		shipping string
		pay      string
		coupon   string
		address  checkout.Address
	)
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Price and submit the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.credentials.IsAuthenticated() {
				return errSignInRequired
			}
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			if err := a.carts.Load(ctx); err != nil {
				return err
			}
			items := a.carts.Items()

			flow := checkoutflow.New(sessionConfig{a.loader}, a.client, a.log)
			if err := flow.Configure(ctx); err != nil {
				return err
			}

			quote, err := flow.Quote(items, shipping, coupon)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Subtotal:    %s\n", money(quote.Subtotal))
			fmt.Fprintf(w, "Discount:   -%s\n", money(quote.Discount))
			fmt.Fprintf(w, "Shipping:    %s\n", money(quote.Shipping))
			fmt.Fprintf(w, "Tax:         %s\n", money(quote.Tax))
			fmt.Fprintf(w, "Payment fee: %s\n", money(quote.PaymentFee))
			fmt.Fprintf(w, "Estimate:    %s\n\n", money(quote.Total))

			conf, err := flow.Submit(ctx, payloadFor(items, address, shipping, pay, coupon))
			if err != nil {
				if flow.State() == checkoutflow.StateFailed {
					fmt.Fprintln(cmd.ErrOrStderr(), "Checkout failed; your cart is unchanged. Run checkout again to retry.")
				}
				return err
			}

			c := conf.Checkout
			fmt.Fprintf(w, "Order %s confirmed\n", c.ID)
			fmt.Fprintf(w, "Charged:     %s %s\n", money(c.Total), c.Currency)
			fmt.Fprintf(w, "Ship to:     %s\n", c.ResolvedLocation)
			fmt.Fprintf(w, "Payment:     %s (%s)\n", conf.Payment.ID, conf.Payment.Status)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&shipping, "shipping", "standard", "shipping method id")
	f.StringVar(&pay, "payment", "card", "payment method")
	f.StringVar(&coupon, "coupon", "", "coupon code")
	f.StringVar(&address.Name, "name", "", "recipient name")
	f.StringVar(&address.Line1, "line1", "", "street address")
	f.StringVar(&address.Line2, "line2", "", "apartment, suite, etc.")
	f.StringVar(&address.City, "city", "", "city")
	f.StringVar(&address.Region, "region", "", "state or region")
	f.StringVar(&address.PostalCode, "postal-code", "", "postal code")
	f.StringVar(&address.Country, "country", "", "ISO country code")
	return cmd
}

func payloadFor(items []cart.Item, address checkout.Address, shipping, pay, coupon string) checkout.Payload {
	lines := make([]checkout.LineRequest, 0, len(items))
	for _, item := range items {
		lines = append(lines, checkout.LineRequest{
			ProductID: item.Product.ID,
			Quantity:  item.Quantity,
			Variant:   item.SelectedVariant,
		})
	}
	return checkout.Payload{
		Items:           lines,
		ShippingAddress: address,
		ShippingMethod:  shipping,
		PaymentMethod:   pay,
		CouponCode:      coupon,
	}
}

// ============================================
// session
// ============================================

func newLoginCmd(a *app) *cobra.Command {
	var userID, token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and move the guest cart to your account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a.credentials.Login(userID, token)

			remote := cartstore.NewRemoteCartRepository(a.client)
			if _, err := remote.Load(ctx); err != nil {
				a.credentials.Logout()
				if errors.Is(err, apiclient.ErrUnauthorized) {
					return fmt.Errorf("token rejected: %w", err)
				}
				return err
			}
			if err := a.saveSession(userID, token); err != nil {
				return err
			}

			guest := cartstore.NewLocalCartRepository(a.store)
			result, err := cartstore.MergeGuestCart(ctx, guest, remote, a.notifier(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s", userID)
			if n := len(result.Rejected); n > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), " (%d guest line(s) could not be moved)", n)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&token, "token", "", "access token")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out; the cart falls back to the guest cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.credentials.Logout()
			if err := a.store.Delete(sessionKey); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}
