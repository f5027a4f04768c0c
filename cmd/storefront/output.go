package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fjod/storefront/internal/domain"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printProducts(w io.Writer, products []domain.Product) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tPRICE\tFEATURED")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%t\n", p.ID, p.Title, p.Category, p.Price, p.Featured)
	}
	return tw.Flush()
}

func printCart(w io.Writer, items []domain.CartItem) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tPRICE\tQTY\tSUBTOTAL")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%d\t%.2f\n", item.ID, item.Title, item.Price, item.Quantity, item.Subtotal())
	}
	fmt.Fprintf(tw, "\t\t\t%d\t%.2f\n", domain.CartItemCount(items), domain.CartTotal(items))
	return tw.Flush()
}

func printOrders(w io.Writer, orders []domain.Order) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSTATUS\tITEMS\tTOTAL\tCUSTOMER")
	for _, o := range orders {
		customer := ""
		if o.Customer != nil {
			customer = fmt.Sprintf("%s %s <%s>", o.Customer.FirstName, o.Customer.LastName, o.Customer.Email)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.2f\t%s\n",
			o.ID, o.CreatedAt.Format("2006-01-02 15:04"), o.Status, len(o.Items), o.Total, customer)
	}
	return tw.Flush()
}
