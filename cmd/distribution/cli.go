package main

import (
	"io"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"distribution/pkg/domain/model"
	"distribution/pkg/domain/service"
)

func newCLI(rt *runtime, out io.Writer) *cli.App {
	return &cli.App{
		Name:   "distribution",
		Usage:  "customers, catalog, orders and debt ledger of a distribution business",
		Writer: out,
		// Errors are mapped to exit codes by main.
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			migrateCommand(rt),
			customerCommand(rt),
			productCommand(rt),
			orderCommand(rt),
			debtCommand(rt),
			ledgerCommand(rt),
		},
	}
}

func customerFlag() *cli.StringFlag {
	return &cli.StringFlag{Name: "customer", Usage: "customer id", Required: true}
}

func limitFlag() *cli.IntFlag {
	return &cli.IntFlag{Name: "limit", Usage: "maximum number of records, newest first (default from DEFAULT_PAGE_LIMIT)"}
}

func searchFlag() *cli.StringFlag {
	return &cli.StringFlag{Name: "search", Usage: "case-insensitive name filter"}
}

func allFlag() *cli.BoolFlag {
	return &cli.BoolFlag{Name: "all", Usage: "include inactive records"}
}

func idFlag(usage string) *cli.StringFlag {
	return &cli.StringFlag{Name: "id", Usage: usage, Required: true}
}

func migrateCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "create or upgrade the storage schema of the configured backend",
		Action: func(c *cli.Context) error {
			b, err := rt.openStore(c.Context)
			if err != nil {
				return err
			}
			return b.migrate(c.Context)
		},
	}
}

func customerCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "customer",
		Usage: "manage customers",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "register a customer with zero debt",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "location", Required: true},
					&cli.StringFlag{Name: "phone", Required: true},
					&cli.StringFlag{Name: "email"},
					&cli.StringFlag{Name: "notes"},
					&cli.BoolFlag{Name: "inactive", Usage: "create the customer as inactive"},
				},
				Action: func(c *cli.Context) error {
					svc, err := rt.openServices(c.Context)
					if err != nil {
						return err
					}
					isActive := !c.Bool("inactive")
					customer, err := svc.customers.CreateCustomer(c.Context, service.CreateCustomerInput{
						Name:     c.String("name"),
						Location: c.String("location"),
						Phone:    c.String("phone"),
						Email:    optionalString(c, "email"),
						Notes:    optionalString(c, "notes"),
						IsActive: &isActive,
					})
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, customer)
				},
			},
			{
				Name:  "get",
				Usage: "show one customer",
				Flags: []cli.Flag{idFlag("customer id")},
				Action: func(c *cli.Context) error {
					id, err := uuidArg(c, "id")
					if err != nil {
						return err
					}
					svc, err := rt.openServices(c.Context)
					if err != nil {
						return err
					}
					customer, err := svc.customers.GetCustomer(c.Context, id)
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, customer)
				},
			},
			{
				Name:  "list",
				Usage: "list customers",
				Flags: []cli.Flag{searchFlag(), allFlag()},
				Action: func(c *cli.Context) error {
					svc, err := rt.openServices(c.Context)
					if err != nil {
						return err
					}
					customers, err := svc.customers.ListCustomers(c.Context, listOptions(c))
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, customers)
				},
			},
			customerActivityCommand(rt, "deactivate", "soft-delete a customer; the debt is kept", false),
			customerActivityCommand(rt, "activate", "restore a deactivated customer", true),
			{
				Name:  "detail",
				Usage: "show a customer with the most recent orders",
				Flags: []cli.Flag{idFlag("customer id")},
				Action: func(c *cli.Context) error {
					id, err := uuidArg(c, "id")
					if err != nil {
						return err
					}
					svc, err := rt.openServices(c.Context)
					if err != nil {
						return err
					}
					detail, err := svc.queries.GetCustomerDetail(c.Context, id)
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, detail)
				},
			},
		},
	}
}

func customerActivityCommand(rt *runtime, name, usage string, active bool) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: []cli.Flag{idFlag("customer id")},
		Action: func(c *cli.Context) error {
			id, err := uuidArg(c, "id")
			if err != nil {
				return err
			}
			svc, err := rt.openServices(c.Context)
			if err != nil {
				return err
			}
			customer, err := svc.customers.SetCustomerActive(c.Context, id, active)
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, customer)
		},
	}
}

func productCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "product",
		Usage: "manage the catalog",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "add a product to the catalog",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "buying-price", Required: true},
					&cli.StringFlag{Name: "selling-price", Required: true},
					&cli.StringFlag{Name: "discount", Usage: "discount percent, 0 to 100"},
					&cli.StringFlag{Name: "image-key"},
					&cli.BoolFlag{Name: "inactive", Usage: "create the product as inactive"},
				},
				Action: func(c *cli.Context) error {
					input := service.CreateProductInput{
						Name:     c.String("name"),
						ImageKey: optionalString(c, "image-key"),
					}
					var err error
					if input.BaseBuyingPrice, err = decimalArg(c, "buying-price"); err != nil {
						return err
					}
					if input.BaseSellingPrice, err = decimalArg(c, "selling-price"); err != nil {
						return err
					}
					if input.DiscountPercent, err = optionalDecimal(c, "discount"); err != nil {
						return err
					}
					isActive := !c.Bool("inactive")
					input.IsActive = &isActive

					svc, err := rt.openServices(c.Context)
					if err != nil {
						return err
					}
					product, err := svc.products.CreateProduct(c.Context, input)
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, newProductView(product))
				},
			},
			{
				Name:  "get",
				Usage: "show one product",
				Flags: []cli.Flag{idFlag("product id")},
				Action: func(c *cli.Context) error {
					id, err := uuidArg(c, "id")
					if err != nil {
						return err
					}
					svc, err := rt.openServices(c.Context)
					if err != nil {
						return err
					}
					product, err := svc.products.GetProduct(c.Context, id)
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, newProductView(product))
				},
			},
			{
				Name:  "update",
				Usage: "change the supplied fields of a product",
				Flags: []cli.Flag{
					idFlag("product id"),
					&cli.StringFlag{Name: "name"},
					&cli.StringFlag{Name: "buying-price"},
					&cli.StringFlag{Name: "selling-price"},
					&cli.StringFlag{Name: "discount"},
					&cli.StringFlag{Name: "image-key"},
					&cli.BoolFlag{Name: "active"},
				},
				Action: func(c *cli.Context) error {
					id, err := uuidArg(c, "id")
					if err != nil {
						return err
					}
					update := model.ProductUpdate{
						Name:     optionalString(c, "name"),
						ImageKey: optionalString(c, "image-key"),
					}
					if update.BaseBuyingPrice, err = optionalDecimal(c, "buying-price"); err != nil {
						return err
					}
					if update.BaseSellingPrice, err = optionalDecimal(c, "selling-price"); err != nil {
						return err
					}
					if update.DiscountPercent, err = optionalDecimal(c, "discount"); err != nil {
						return err
					}
					if c.IsSet("active") {
						active := c.Bool("active")
						update.IsActive = &active
					}

					svc, err := rt.openServices(c.Context)
					if err != nil {
						return err
					}
					product, err := svc.products.UpdateProduct(c.Context, id, update)
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, newProductView(product))
				},
			},
			{
				Name:  "list",
				Usage: "list the catalog",
				Flags: []cli.Flag{searchFlag(), allFlag()},
				Action: func(c *cli.Context) error {
					svc, err := rt.openServices(c.Context)
					if err != nil {
						return err
					}
					products, err := svc.products.ListProducts(c.Context, listOptions(c))
					if err != nil {
						return err
					}
					views := make([]productView, 0, len(products))
					for _, p := range products {
						views = append(views, newProductView(p))
					}
					return printJSON(c.App.Writer, views)
				},
			},
		},
	}
}

func orderCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "order",
		Usage: "place and inspect orders",
		Subcommands: []*cli.Command{
			{
				Name:  "place",
				Usage: "place an order and add its unpaid remainder to the customer's debt",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Usage: "JSON request document; other flags are ignored when set"},
					&cli.StringFlag{Name: "customer", Usage: "customer id"},
					&cli.StringSliceFlag{Name: "item", Usage: "productId:quantity[:unitPrice], repeatable"},
					&cli.StringFlag{Name: "discount", Usage: "order-level discount amount"},
					&cli.StringFlag{Name: "paid", Usage: "amount paid at placement"},
					&cli.StringFlag{Name: "date", Usage: "order date, RFC 3339 (default now)"},
					&cli.StringFlag{Name: "notes"},
				},
				Action: func(c *cli.Context) error {
					input, err := placeOrderInput(c)
					if err != nil {
						return err
					}
					svc, err := rt.openServices(c.Context)
					if err != nil {
						return err
					}
					order, err := svc.ledger.PlaceOrder(c.Context, input)
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, order)
				},
			},
			{
				Name:  "list",
				Usage: "list a customer's orders, newest first",
				Flags: []cli.Flag{customerFlag(), limitFlag()},
				Action: func(c *cli.Context) error {
					customerID, err := uuidArg(c, "customer")
					if err != nil {
						return err
					}
					svc, err := rt.openServices(c.Context)
					if err != nil {
						return err
					}
					orders, err := svc.queries.GetCustomerOrders(c.Context, customerID, pageOptions(c))
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, orders)
				},
			},
			{
				Name:  "get",
				Usage: "find one order among the customer's most recent orders",
				Flags: []cli.Flag{customerFlag(), idFlag("order id")},
				Action: func(c *cli.Context) error {
					customerID, err := uuidArg(c, "customer")
					if err != nil {
						return err
					}
					orderID, err := uuidArg(c, "id")
					if err != nil {
						return err
					}
					svc, err := rt.openServices(c.Context)
					if err != nil {
						return err
					}
					order, err := svc.queries.GetOrder(c.Context, customerID, orderID)
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, order)
				},
			},
		},
	}
}

func placeOrderInput(c *cli.Context) (service.PlaceOrderInput, error) {
	var input service.PlaceOrderInput
	if c.IsSet("file") {
		err := loadRequest(c.String("file"), &input)
		return input, err
	}

	var err error
	if input.CustomerID, err = uuidArg(c, "customer"); err != nil {
		return input, err
	}
	for _, raw := range c.StringSlice("item") {
		item, err := parseOrderItem(raw)
		if err != nil {
			return input, err
		}
		input.Items = append(input.Items, item)
	}
	if input.Discount, err = decimalArg(c, "discount"); err != nil {
		return input, err
	}
	if input.PaidNow, err = decimalArg(c, "paid"); err != nil {
		return input, err
	}
	if input.OrderDate, err = optionalTime(c, "date"); err != nil {
		return input, err
	}
	input.Notes = optionalString(c, "notes")
	return input, nil
}

func debtCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "debt",
		Usage: "manual debt adjustments",
		Subcommands: []*cli.Command{
			{
				Name:  "adjust",
				Usage: "record a signed adjustment of a customer's debt",
				Flags: []cli.Flag{
					customerFlag(),
					&cli.StringFlag{Name: "amount", Usage: "positive increases the debt, negative decreases it", Required: true},
					&cli.StringFlag{Name: "reason", Required: true},
					&cli.StringFlag{Name: "timestamp", Usage: "RFC 3339 (default now)"},
				},
				Action: func(c *cli.Context) error {
					input := service.AdjustDebtInput{Reason: c.String("reason")}
					var err error
					if input.CustomerID, err = uuidArg(c, "customer"); err != nil {
						return err
					}
					if input.Amount, err = decimalArg(c, "amount"); err != nil {
						return err
					}
					if input.Timestamp, err = optionalTime(c, "timestamp"); err != nil {
						return err
					}
					svc, err := rt.openServices(c.Context)
					if err != nil {
						return err
					}
					result, err := svc.ledger.AdjustDebt(c.Context, input)
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, result)
				},
			},
			{
				Name:  "list",
				Usage: "list a customer's debt adjustments, newest first",
				Flags: []cli.Flag{customerFlag(), limitFlag()},
				Action: func(c *cli.Context) error {
					customerID, err := uuidArg(c, "customer")
					if err != nil {
						return err
					}
					svc, err := rt.openServices(c.Context)
					if err != nil {
						return err
					}
					adjustments, err := svc.queries.GetCustomerDebtAdjustments(c.Context, customerID, pageOptions(c))
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, adjustments)
				},
			},
		},
	}
}

func ledgerCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "ledger",
		Usage: "repair and verify customer balances",
		Subcommands: []*cli.Command{
			{
				Name:  "reconcile-order",
				Usage: "apply the debt change of an order whose balance update failed",
				Flags: []cli.Flag{customerFlag(), &cli.StringFlag{Name: "order", Required: true}},
				Action: func(c *cli.Context) error {
					return reconcile(c, rt, "order", func(svc *services, customerID, eventID uuid.UUID) (*model.Customer, error) {
						return svc.ledger.ReconcileOrder(c.Context, customerID, eventID)
					})
				},
			},
			{
				Name:  "reconcile-debt",
				Usage: "apply the amount of a debt adjustment whose balance update failed",
				Flags: []cli.Flag{customerFlag(), &cli.StringFlag{Name: "adjustment", Required: true}},
				Action: func(c *cli.Context) error {
					return reconcile(c, rt, "adjustment", func(svc *services, customerID, eventID uuid.UUID) (*model.Customer, error) {
						return svc.ledger.ReconcileDebtAdjustment(c.Context, customerID, eventID)
					})
				},
			},
			{
				Name:  "audit",
				Usage: "compare a customer's totalDebt with the sum of recorded events",
				Flags: []cli.Flag{customerFlag()},
				Action: func(c *cli.Context) error {
					customerID, err := uuidArg(c, "customer")
					if err != nil {
						return err
					}
					svc, err := rt.openServices(c.Context)
					if err != nil {
						return err
					}
					audit, err := svc.ledger.AuditBalance(c.Context, customerID)
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, audit)
				},
			},
		},
	}
}

type reconcileFunc func(svc *services, customerID, eventID uuid.UUID) (*model.Customer, error)

func reconcile(c *cli.Context, rt *runtime, eventFlag string, fn reconcileFunc) error {
	customerID, err := uuidArg(c, "customer")
	if err != nil {
		return err
	}
	eventID, err := uuidArg(c, eventFlag)
	if err != nil {
		return err
	}
	svc, err := rt.openServices(c.Context)
	if err != nil {
		return err
	}
	customer, err := fn(svc, customerID, eventID)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, customer)
}
