package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dmehra2102/medsupply-orders/internal/order/domain"
	"github.com/dmehra2102/medsupply-orders/internal/submission"
	"github.com/dmehra2102/medsupply-orders/pkg/orderapi"
)

var itemFlag = &cli.StringSliceFlag{
	Name:     "item",
	Aliases:  []string{"i"},
	Usage:    `cart line as "Product Name=quantity"; repeat for more lines`,
	Required: true,
}

func productsCommand() *cli.Command {
	return &cli.Command{
		Name:  "products",
		Usage: "list the catalogue with prices",
		Action: func(c *cli.Context) error {
			rt, err := newRuntime(c, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			products, cached, err := rt.catalogue(c.Context)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tUNIT\tPRICE\tSTOCK")
			for _, p := range products {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", p.ID, p.Name, p.Unit, domain.FormatNaira(p.Price), p.StockQuantity)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if cached {
				fmt.Fprintln(c.App.Writer, "(offline: showing saved catalogue)")
			}
			return nil
		},
	}
}

func previewCommand() *cli.Command {
	return &cli.Command{
		Name:  "preview",
		Usage: "price a cart without placing it",
		Flags: []cli.Flag{itemFlag},
		Action: func(c *cli.Context) error {
			rt, err := newRuntime(c, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			draft, err := buildDraft(c, rt)
			if err != nil {
				return err
			}
			for _, line := range draft.Summary() {
				fmt.Fprintln(c.App.Writer, line)
			}
			return nil
		},
	}
}

func submitCommand() *cli.Command {
	return &cli.Command{
		Name:  "submit",
		Usage: "place an order, queueing it if the order service is unreachable",
		Flags: []cli.Flag{
			itemFlag,
			&cli.StringFlag{Name: "name", Usage: "customer or facility name", Required: true},
			&cli.StringFlag{Name: "email", Usage: "customer email"},
			&cli.StringFlag{Name: "phone", Usage: "contact phone", Required: true},
			&cli.StringFlag{Name: "address", Usage: "delivery address", Required: true},
			&cli.StringFlag{Name: "delivery-date", Usage: "YYYY-MM-DD (default tomorrow)"},
			&cli.StringFlag{Name: "route", Usage: "delivery route notes"},
			&cli.StringFlag{Name: "method", Value: string(domain.PickupEnugu), Usage: "preferred delivery method"},
			&cli.StringFlag{Name: "urgency", Value: string(domain.CanWait24Hrs), Usage: "can_wait_24hrs, urgent or very_urgent"},
		},
		Action: func(c *cli.Context) error {
			rt, err := newRuntime(c, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			draft, err := buildDraft(c, rt)
			if err != nil {
				return err
			}
			date := c.String("delivery-date")
			if date == "" {
				date = time.Now().AddDate(0, 0, 1).Format(orderapi.DeliveryDateLayout)
			}
			draft.Customer = orderapi.CustomerData{
				Name:            c.String("name"),
				Email:           c.String("email"),
				Phone:           c.String("phone"),
				DeliveryAddress: c.String("address"),
			}
			draft.Order = orderapi.OrderData{
				DeliveryDate:            date,
				DeliveryRoute:           c.String("route"),
				PreferredDeliveryMethod: c.String("method"),
				RequestStatus:           c.String("urgency"),
			}
			req, err := draft.Request()
			if err != nil {
				return err
			}

			receipt, err := rt.queue.Submit(c.Context, req)
			if err != nil {
				return err
			}
			switch {
			case receipt.Outcome == submission.OutcomeSubmitted && receipt.Order != nil:
				o := receipt.Order
				fmt.Fprintf(c.App.Writer, "order #%d placed, total %s (VAT %s)\n", o.ID, domain.FormatNaira(o.TotalAmount), domain.FormatNaira(o.VATAmount))
			case receipt.Outcome == submission.OutcomeQueued:
				fmt.Fprintf(c.App.Writer, "order %s saved offline; it will be sent when the order service is reachable\n", receipt.ID)
			default:
				fmt.Fprintf(c.App.Writer, "order %s %s\n", receipt.ID, receipt.Outcome)
			}
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "send queued orders now",
		Action: func(c *cli.Context) error {
			rt, err := newRuntime(c, func(*slog.Logger) submission.Notifier {
				return &printNotifier{cli: c}
			})
			if err != nil {
				return err
			}
			defer rt.Close()

			if !rt.reach.Reachable(c.Context) {
				return fmt.Errorf("order service at %s is unreachable; %d order(s) still queued", rt.cfg.APIURL, len(rt.queue.Pending()))
			}
			report, err := rt.queue.Sync(c.Context)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "attempted %d, submitted %d, dropped %d, still queued %d\n",
				report.Attempted, report.Submitted, report.Dropped, report.Retained)
			return nil
		},
	}
}

func queueCommand() *cli.Command {
	return &cli.Command{
		Name:  "queue",
		Usage: "show orders waiting to be sent",
		Action: func(c *cli.Context) error {
			rt, err := newRuntime(c, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			pending := rt.queue.Pending()
			if len(pending) == 0 {
				fmt.Fprintln(c.App.Writer, "no queued orders")
				return nil
			}
			w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tQUEUED\tCUSTOMER\tLINES\tATTEMPTS\tLAST ERROR")
			for _, p := range pending {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
					p.ID, p.QueuedAt.Local().Format(time.DateTime), p.Payload.CustomerData.Name,
					len(p.Payload.Items), p.Attempts, p.LastError)
			}
			return w.Flush()
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "stay running and send queued orders whenever the order service comes back",
		Action: func(c *cli.Context) error {
			rt, err := newRuntime(c, func(log *slog.Logger) submission.Notifier {
				return submission.LogNotifier{Log: log}
			})
			if err != nil {
				return err
			}
			defer rt.Close()
			if rt.monitor == nil {
				return errors.New("watch needs the order service; drop --offline")
			}

			syncer := submission.NewSyncer(rt.log, rt.queue, rt.monitor.Restored(), rt.cfg.SyncInterval)
			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				_ = rt.monitor.Run(c.Context)
			}()
			go func() {
				defer wg.Done()
				_ = syncer.Run(c.Context)
			}()
			rt.log.Info("watching offline queue", "pending", len(rt.queue.Pending()), "api", rt.cfg.APIURL)
			wg.Wait()
			return nil
		},
	}
}

func buildDraft(c *cli.Context, rt *runtime) (*submission.Draft, error) {
	products, cached, err := rt.catalogue(c.Context)
	if err != nil {
		return nil, err
	}
	if cached {
		rt.log.Info("pricing with saved catalogue; the order service reprices on receipt")
	}
	draft := submission.NewDraft(products)
	for _, raw := range c.StringSlice("item") {
		name, qty, err := parseItem(raw)
		if err != nil {
			return nil, err
		}
		draft.SetQuantity(name, qty)
	}
	return draft, nil
}

// parseItem splits "Name=qty" on the last '=' so product names may contain one.
func parseItem(raw string) (string, int, error) {
	i := strings.LastIndexByte(raw, '=')
	if i <= 0 {
		return "", 0, fmt.Errorf("item %q: want \"Product Name=quantity\"", raw)
	}
	qty, err := strconv.Atoi(strings.TrimSpace(raw[i+1:]))
	if err != nil || qty <= 0 {
		return "", 0, fmt.Errorf("item %q: quantity must be a positive whole number", raw)
	}
	return strings.TrimSpace(raw[:i]), qty, nil
}

// printNotifier reports sync results on the command's output.
type printNotifier struct {
	submission.NopNotifier
	cli *cli.Context
}

func (n *printNotifier) Submitted(id string, o *orderapi.Order) {
	if o == nil {
		fmt.Fprintf(n.cli.App.Writer, "sent %s\n", id)
		return
	}
	fmt.Fprintf(n.cli.App.Writer, "sent %s as order #%d (%s)\n", id, o.ID, domain.FormatNaira(o.TotalAmount))
}

func (n *printNotifier) Dropped(q submission.QueuedOrder, err error) {
	fmt.Fprintf(n.cli.App.Writer, "dropped %s for %s: %v\n", q.ID, q.Payload.CustomerData.Name, err)
}
