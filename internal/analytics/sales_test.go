package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gawangliliw/sellerhub/internal/models"
)

// Wednesday.
var now = time.Date(2024, time.February, 14, 15, 30, 0, 0, time.UTC)

func order(status models.OrderStatus, at time.Time, total float64, items ...models.OrderItem) models.Order {
	return models.Order{Status: status, CreatedAt: at, TotalAmount: total, Items: items}
}

func item(id string, qty int, price float64) models.OrderItem {
	return models.OrderItem{ProductID: id, ProductName: "Product " + id, Quantity: qty, Price: price}
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, PeriodMonth, p)

	p, err = ParsePeriod("week")
	require.NoError(t, err)
	assert.Equal(t, PeriodWeek, p)

	_, err = ParsePeriod("decade")
	assert.Error(t, err)
}

func TestWindow(t *testing.T) {
	from, to := Window(PeriodWeek, now)
	assert.Equal(t, time.Date(2024, time.February, 11, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Sunday, from.Weekday())
	assert.Equal(t, time.Date(2024, time.February, 18, 0, 0, 0, 0, time.UTC), to)

	from, to = Window(PeriodYear, now)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), to)

	from, to = Window(PeriodDay, now)
	assert.Equal(t, 24*time.Hour, to.Sub(from))
}

func TestLabels(t *testing.T) {
	year := Labels(PeriodYear, now)
	assert.Len(t, year, 12)
	assert.Equal(t, "Jan", year[0])
	assert.Equal(t, "Dec", year[11])

	// 2024 is a leap year.
	month := Labels(PeriodMonth, now)
	assert.Len(t, month, 29)
	assert.Equal(t, "1", month[0])
	assert.Equal(t, "29", month[28])

	week := Labels(PeriodWeek, now)
	assert.Equal(t, []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}, week)

	day := Labels(PeriodDay, now)
	assert.Len(t, day, 24)
	assert.Equal(t, "00:00", day[0])
	assert.Equal(t, "23:00", day[23])
}

func TestAggregateMonth(t *testing.T) {
	orders := []models.Order{
		order(models.OrderDelivered, time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC), 100, item("a", 2, 50)),
		order(models.OrderCompleted, time.Date(2024, 2, 1, 18, 0, 0, 0, time.UTC), 0, item("b", 1, 30), item("a", 1, 50)),
		order(models.OrderCompleted, time.Date(2024, 2, 14, 9, 0, 0, 0, time.UTC), 20, item("c", 4, 5)),
		// Excluded: wrong status, outside window.
		order(models.OrderPending, time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC), 999, item("a", 10, 99)),
		order(models.OrderCancelled, time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), 999),
		order(models.OrderCompleted, time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC), 999),
		order(models.OrderCompleted, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 999),
	}

	s := Aggregate(orders, PeriodMonth, now, DefaultTopProducts)
	assert.Equal(t, 3, s.OrderCount)
	assert.Equal(t, 200.0, s.TotalRevenue)
	assert.InDelta(t, 66.67, s.AverageOrderValue, 0.001)
	assert.Equal(t, 180.0, s.Values[0])
	assert.Equal(t, 2, s.Counts[0])
	assert.Equal(t, 20.0, s.Values[13])
	assert.Len(t, s.Values, 29)

	require.Len(t, s.TopProducts, 3)
	assert.Equal(t, "c", s.TopProducts[0].ProductID)
	assert.Equal(t, "a", s.TopProducts[1].ProductID)
	assert.Equal(t, 3, s.TopProducts[1].Quantity)
	assert.Equal(t, 150.0, s.TopProducts[1].Revenue)
	assert.Equal(t, "b", s.TopProducts[2].ProductID)
}

func TestAggregateWeekAndDayBuckets(t *testing.T) {
	orders := []models.Order{
		order(models.OrderDelivered, time.Date(2024, 2, 11, 8, 0, 0, 0, time.UTC), 10),  // Sunday
		order(models.OrderDelivered, time.Date(2024, 2, 14, 15, 5, 0, 0, time.UTC), 15), // Wednesday, today
		order(models.OrderDelivered, time.Date(2024, 2, 17, 23, 0, 0, 0, time.UTC), 5),  // Saturday
		order(models.OrderDelivered, time.Date(2024, 2, 10, 23, 0, 0, 0, time.UTC), 50), // previous week
	}

	w := Aggregate(orders, PeriodWeek, now, 0)
	assert.Equal(t, []float64{10, 0, 0, 15, 0, 0, 5}, w.Values)
	assert.Equal(t, 3, w.OrderCount)

	d := Aggregate(orders, PeriodDay, now, 0)
	assert.Equal(t, 1, d.OrderCount)
	assert.Equal(t, 15.0, d.Values[15])
}

func TestAggregateYearUsesLocation(t *testing.T) {
	manila := time.FixedZone("PHT", 8*3600)
	localNow := now.In(manila)
	// 2023-12-31 20:00 UTC is 2024-01-01 04:00 in Manila.
	orders := []models.Order{
		order(models.OrderCompleted, time.Date(2023, 12, 31, 20, 0, 0, 0, time.UTC), 40),
	}
	s := Aggregate(orders, PeriodYear, localNow, 0)
	assert.Equal(t, 1, s.OrderCount)
	assert.Equal(t, 40.0, s.Values[0])
}

func TestAggregateEmpty(t *testing.T) {
	s := Aggregate(nil, PeriodYear, now, DefaultTopProducts)
	assert.Equal(t, 0, s.OrderCount)
	assert.Equal(t, 0.0, s.TotalRevenue)
	assert.Equal(t, 0.0, s.AverageOrderValue)
	assert.Len(t, s.Values, 12)
	assert.Empty(t, s.TopProducts)
}

func TestTopProductsTieBreak(t *testing.T) {
	orders := []models.Order{
		order(models.OrderCompleted, now, 0,
			models.OrderItem{ProductID: "x", ProductName: "Zeta", Quantity: 2, Price: 10},
			models.OrderItem{ProductID: "y", ProductName: "Alpha", Quantity: 2, Price: 10},
			models.OrderItem{ProductID: "z", ProductName: "Mid", Quantity: 2, Price: 20},
		),
	}
	s := Aggregate(orders, PeriodDay, now, 2)
	require.Len(t, s.TopProducts, 2)
	assert.Equal(t, "z", s.TopProducts[0].ProductID)
	assert.Equal(t, "y", s.TopProducts[1].ProductID)
}
