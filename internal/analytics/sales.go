// Package analytics derives the staff dashboard's sales figures from order
// documents.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"gawangliliw/sellerhub/internal/models"
)

// Period selects the calendar span and bucket granularity.
type Period string

const (
	PeriodYear  Period = "year"
	PeriodMonth Period = "month"
	PeriodWeek  Period = "week"
	PeriodDay   Period = "day"
)

// DefaultTopProducts is how many products the summary ranks.
const DefaultTopProducts = 5

// ParsePeriod accepts the four period names; empty means month.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "":
		return PeriodMonth, nil
	case PeriodYear, PeriodMonth, PeriodWeek, PeriodDay:
		return Period(s), nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// ProductStat is one line of the top-products table.
type ProductStat struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Revenue   float64 `json:"revenue"`
}

// SalesSummary is everything the dashboard chart and cards render.
type SalesSummary struct {
	Period            Period        `json:"period"`
	From              time.Time     `json:"from"`
	To                time.Time     `json:"to"`
	Labels            []string      `json:"labels"`
	Values            []float64     `json:"values"`
	Counts            []int         `json:"counts"`
	TotalRevenue      float64       `json:"total_revenue"`
	OrderCount        int           `json:"order_count"`
	AverageOrderValue float64       `json:"average_order_value"`
	TopProducts       []ProductStat `json:"top_products"`
}

// Window returns the half-open span [from, to) of the period containing now,
// in now's location. Weeks start on Sunday.
func Window(p Period, now time.Time) (time.Time, time.Time) {
	loc := now.Location()
	y, m, d := now.Date()
	switch p {
	case PeriodYear:
		from := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		return from, from.AddDate(1, 0, 0)
	case PeriodWeek:
		from := time.Date(y, m, d-int(now.Weekday()), 0, 0, 0, 0, loc)
		return from, from.AddDate(0, 0, 7)
	case PeriodDay:
		from := time.Date(y, m, d, 0, 0, 0, 0, loc)
		return from, from.AddDate(0, 0, 1)
	default:
		from := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return from, from.AddDate(0, 1, 0)
	}
}

// Labels returns the bucket labels of the period containing now.
func Labels(p Period, now time.Time) []string {
	switch p {
	case PeriodYear:
		out := make([]string, 12)
		for i := range out {
			out[i] = time.Month(i + 1).String()[:3]
		}
		return out
	case PeriodWeek:
		out := make([]string, 7)
		for i := range out {
			out[i] = time.Weekday(i).String()[:3]
		}
		return out
	case PeriodDay:
		out := make([]string, 24)
		for i := range out {
			out[i] = fmt.Sprintf("%02d:00", i)
		}
		return out
	default:
		from, to := Window(PeriodMonth, now)
		days := int(to.Sub(from).Hours()/24 + 0.5)
		out := make([]string, days)
		for i := range out {
			out[i] = strconv.Itoa(i + 1)
		}
		return out
	}
}

// bucketOf maps t (already in the window's location) to its bucket index.
func bucketOf(p Period, t time.Time) int {
	switch p {
	case PeriodYear:
		return int(t.Month()) - 1
	case PeriodWeek:
		return int(t.Weekday())
	case PeriodDay:
		return t.Hour()
	default:
		return t.Day() - 1
	}
}

// Aggregate buckets the completed orders of the period containing now by
// their creation time. Orders outside the window or not yet delivered are
// ignored.
func Aggregate(orders []models.Order, p Period, now time.Time, topN int) SalesSummary {
	from, to := Window(p, now)
	labels := Labels(p, now)
	summary := SalesSummary{
		Period: p,
		From:   from,
		To:     to,
		Labels: labels,
		Values: make([]float64, len(labels)),
		Counts: make([]int, len(labels)),
	}

	products := make(map[string]*ProductStat)
	for i := range orders {
		o := &orders[i]
		if !o.Status.IsSale() {
			continue
		}
		at := o.CreatedAt.In(now.Location())
		if at.Before(from) || !at.Before(to) {
			continue
		}
		total := o.Total()
		b := bucketOf(p, at)
		summary.Values[b] += total
		summary.Counts[b]++
		summary.TotalRevenue += total
		summary.OrderCount++

		for _, it := range o.Items {
			key := it.ProductID
			if key == "" {
				key = it.ProductName
			}
			ps, ok := products[key]
			if !ok {
				ps = &ProductStat{ProductID: it.ProductID, Name: it.ProductName}
				products[key] = ps
			}
			ps.Quantity += it.Quantity
			ps.Revenue += it.Subtotal()
		}
	}

	for i := range summary.Values {
		summary.Values[i] = round2(summary.Values[i])
	}
	summary.TotalRevenue = round2(summary.TotalRevenue)
	if summary.OrderCount > 0 {
		summary.AverageOrderValue = round2(summary.TotalRevenue / float64(summary.OrderCount))
	}
	summary.TopProducts = topProducts(products, topN)
	return summary
}

// topProducts ranks by quantity, then revenue, then name.
func topProducts(products map[string]*ProductStat, n int) []ProductStat {
	out := make([]ProductStat, 0, len(products))
	for _, ps := range products {
		ps.Revenue = round2(ps.Revenue)
		out = append(out, *ps)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		if a.Revenue != b.Revenue {
			return a.Revenue > b.Revenue
		}
		return a.Name < b.Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
