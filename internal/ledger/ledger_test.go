package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/books/internal/apperr"
	"github.com/theirongolddev/books/internal/auth"
	"github.com/theirongolddev/books/internal/model"
	"github.com/theirongolddev/books/internal/period"
	"github.com/theirongolddev/books/internal/store"
)

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "books.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(st, opts...)
}

func date(s string) time.Time {
	d, err := period.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func month(s string) period.Month {
	m, err := period.ParseMonth(s)
	if err != nil {
		panic(err)
	}
	return m
}

func paidExpense(t *testing.T, s *Service, category, tag, due, amount string) model.Expense {
	t.Helper()
	ctx := context.Background()
	e, err := s.CreateExpense(ctx, ExpenseInput{
		Description: category + " " + due,
		Amount:      dec(amount),
		DueDate:     date(due),
		Category:    category,
		Tag:         tag,
	})
	require.NoError(t, err)
	res, err := s.PayExpense(ctx, e.ID, "tester", fixedNow)
	require.NoError(t, err)
	return res.Expense
}

func TestCreateExpenseValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	tests := []struct {
		name string
		in   ExpenseInput
	}{
		{"zero amount", ExpenseInput{Description: "x", Amount: decimal.Zero, DueDate: date("2024-03-01")}},
		{"negative amount", ExpenseInput{Description: "x", Amount: dec("-1"), DueDate: date("2024-03-01")}},
		{"missing due date", ExpenseInput{Description: "x", Amount: dec("1")}},
		{"missing description", ExpenseInput{Amount: dec("1"), DueDate: date("2024-03-01")}},
		{"deadline after due", ExpenseInput{Description: "x", Amount: dec("1"), DueDate: date("2024-03-01"),
			Discount: &DiscountInput{Deadline: date("2024-03-02"), Percent: dec("5")}}},
		{"recurring without frequency", ExpenseInput{Description: "x", Amount: dec("1"), DueDate: date("2024-03-01"), Recurring: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateExpense(ctx, tt.in)
			assert.True(t, apperr.IsValidation(err), "got %v", err)
		})
	}

	all, err := s.ListExpenses(ctx, store.ExpenseFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateExpenseComputesDiscount(t *testing.T) {
	s := newTestService(t)
	e, err := s.CreateExpense(context.Background(), ExpenseInput{
		Description: "Internet",
		Amount:      dec("180000"),
		DueDate:     date("2024-03-20"),
		Discount:    &DiscountInput{Deadline: date("2024-03-10"), Percent: dec("5")},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, e.Status)
	require.NotNil(t, e.Discount)
	assert.True(t, e.Discount.Amount.Equal(dec("9000")))
	assert.NotEmpty(t, e.SeriesID)
	assert.Nil(t, e.PaidAt)
}

func TestPayExpenseNotFound(t *testing.T) {
	s := newTestService(t)
	_, err := s.PayExpense(context.Background(), 404, "ana", fixedNow)
	assert.True(t, apperr.IsNotFound(err))
}

func TestPayRecurringMonthlyClampsToLeapDay(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	e, err := s.CreateExpense(ctx, ExpenseInput{
		Description: "Arriendo",
		Amount:      dec("2000000"),
		DueDate:     date("2024-01-31"),
		Category:    "Rent",
		Tag:         "Office",
		Discount:    &DiscountInput{Deadline: date("2024-01-21"), Percent: dec("5")},
		Recurring:   true,
		Frequency:   model.FrequencyMonthly,
	})
	require.NoError(t, err)

	res, err := s.PayExpense(ctx, e.ID, "ana", fixedNow)
	require.NoError(t, err)
	assert.False(t, res.AlreadyPaid)
	assert.Equal(t, model.StatusPaid, res.Expense.Status)
	require.NotNil(t, res.Expense.PaidAt)
	assert.Equal(t, "ana", res.Expense.PaidBy)

	require.NotNil(t, res.Successor)
	next := res.Successor
	assert.Equal(t, "2024-02-29", period.FormatDate(next.DueDate))
	require.NotNil(t, next.Discount)
	assert.Equal(t, "2024-02-19", period.FormatDate(next.Discount.Deadline))
	assert.True(t, next.Discount.Amount.Equal(dec("100000")))
	assert.Equal(t, model.StatusPending, next.Status)
	assert.Nil(t, next.PaidAt)
	assert.Equal(t, e.SeriesID, next.SeriesID)

	series, err := s.ListSeries(ctx, e.SeriesID)
	require.NoError(t, err)
	assert.Len(t, series, 2)
}

func TestPayExpenseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	e, err := s.CreateExpense(ctx, ExpenseInput{
		Description: "Software",
		Amount:      dec("50000"),
		DueDate:     date("2024-03-05"),
		Recurring:   true,
		Frequency:   model.FrequencyQuarterly,
	})
	require.NoError(t, err)

	first, err := s.PayExpense(ctx, e.ID, "ana", fixedNow)
	require.NoError(t, err)
	require.NotNil(t, first.Successor)
	assert.Equal(t, "2024-06-05", period.FormatDate(first.Successor.DueDate))

	second, err := s.PayExpense(ctx, e.ID, "luis", fixedNow.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, second.AlreadyPaid)
	assert.Nil(t, second.Successor)
	assert.Equal(t, "ana", second.Expense.PaidBy)

	all, err := s.ListExpenses(ctx, store.ExpenseFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2, "second payment must not add another successor")
}

func TestPayExpenseRefreshesBudget(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	b, err := s.CreateBudget(ctx, BudgetInput{Period: month("2024-03"), Category: "Servicios", Tag: "Oficina", Amount: dec("300000")})
	require.NoError(t, err)
	assert.True(t, b.Spent.IsZero())

	paidExpense(t, s, "Servicios", "Oficina", "2024-03-10", "120000")

	got, err := s.GetBudget(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.Spent.Equal(dec("120000")), "spent = %s", got.Spent)
}

func TestRecomputeSpentMatchesPaidSum(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	key := model.Key{Category: "Cafetería", Tag: "Oficina"}
	m := month("2024-03")

	_, err := s.CreateBudget(ctx, BudgetInput{Period: m, Category: key.Category, Tag: key.Tag, Amount: dec("100000")})
	require.NoError(t, err)

	spent, err := s.RecomputeSpent(ctx, key, m)
	require.NoError(t, err)
	assert.True(t, spent.IsZero(), "no rows")

	paidExpense(t, s, key.Category, key.Tag, "2024-03-01", "10000.10")
	spent, err = s.RecomputeSpent(ctx, key, m)
	require.NoError(t, err)
	assert.True(t, spent.Equal(dec("10000.10")), "one row")

	paidExpense(t, s, key.Category, key.Tag, "2024-03-31", "20000.20")
	paidExpense(t, s, key.Category, key.Tag, "2024-03-15", "5")
	_, err = s.CreateExpense(ctx, ExpenseInput{Description: "pending", Amount: dec("999999"), DueDate: date("2024-03-20"),
		Category: key.Category, Tag: key.Tag})
	require.NoError(t, err)
	paidExpense(t, s, key.Category, key.Tag, "2024-04-01", "777")

	spent, err = s.RecomputeSpent(ctx, key, m)
	require.NoError(t, err)
	assert.True(t, spent.Equal(dec("30005.30")), "N rows, pending ignored, got %s", spent)

	again, err := s.RecomputeSpent(ctx, key, m)
	require.NoError(t, err)
	assert.True(t, again.Equal(spent))

	n, err := s.RecomputeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDeletePaidExpenseThenRecompute(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	b, err := s.CreateBudget(ctx, BudgetInput{Period: month("2024-03"), Category: "Otros", Amount: dec("100")})
	require.NoError(t, err)

	e := paidExpense(t, s, "Otros", "", "2024-03-02", "40")
	deleted, err := s.DeleteExpense(ctx, e.ID)
	require.NoError(t, err)
	require.NoError(t, s.RecomputeExpense(ctx, deleted))

	got, err := s.GetBudget(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.Spent.IsZero())

	_, err = s.DeleteExpense(ctx, e.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestEditExpenseRederivesDiscountKeepsPayment(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	e := paidExpense(t, s, "Internet", "Fibra", "2024-03-20", "100000")
	edited, err := s.EditExpense(ctx, e.ID, ExpenseInput{
		Description: "Internet fibra",
		Amount:      dec("200000"),
		DueDate:     date("2024-03-20"),
		Category:    "Internet",
		Tag:         "Fibra",
		Discount:    &DiscountInput{Deadline: date("2024-03-15"), Percent: dec("10")},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, edited.Status)
	assert.NotNil(t, edited.PaidAt)
	assert.Equal(t, e.SeriesID, edited.SeriesID)
	require.NotNil(t, edited.Discount)
	assert.True(t, edited.Discount.Amount.Equal(dec("20000")))
}

func TestCreateBudgetDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	in := BudgetInput{Period: month("2024-03"), Category: "Rent", Tag: "Office", Amount: dec("100")}

	_, err := s.CreateBudget(ctx, in)
	require.NoError(t, err)
	_, err = s.CreateBudget(ctx, in)
	assert.True(t, apperr.IsDuplicate(err), "got %v", err)

	_, err = s.CreateBudget(ctx, BudgetInput{Period: month("2024-03"), Category: "Rent", Amount: dec("-1")})
	assert.True(t, apperr.IsValidation(err))
}

func TestConcurrentCreateBudgetOneWins(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	in := BudgetInput{Period: month("2024-03"), Category: "Rent", Tag: "Office", Amount: dec("100")}

	const workers = 2
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CreateBudget(ctx, in)
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.IsDuplicate(err):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, dup)
}

func TestEditHistoricalBudgetIsBlocked(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	old, err := s.CreateBudget(ctx, BudgetInput{Period: month("2024-01"), Category: "Rent", Tag: "Office", Amount: dec("100")})
	require.NoError(t, err)

	_, err = s.EditBudget(ctx, old.ID, dec("200"))
	assert.True(t, apperr.IsPolicy(err), "got %v", err)
	_, err = s.EditBudget(ctx, old.ID, dec("-5"))
	assert.True(t, apperr.IsPolicy(err), "policy wins over validation, got %v", err)

	cur, err := s.CreateBudget(ctx, BudgetInput{Period: month("2024-03"), Category: "Rent", Tag: "Office", Amount: dec("100")})
	require.NoError(t, err)
	edited, err := s.EditBudget(ctx, cur.ID, dec("250"))
	require.NoError(t, err)
	assert.True(t, edited.Budgeted.Equal(dec("250")))

	_, err = s.EditBudget(ctx, 999, dec("1"))
	assert.True(t, apperr.IsNotFound(err))
}

func TestDeleteBudgetWithSpendNeedsAuthorization(t *testing.T) {
	ctx := context.Background()
	hash, err := auth.HashPIN("2468")
	require.NoError(t, err)
	s := newTestService(t, WithAuthorizer(auth.FromHash(hash)))

	b, err := s.CreateBudget(ctx, BudgetInput{Period: month("2024-03"), Category: "Nómina", Tag: "Planta", Amount: dec("500000")})
	require.NoError(t, err)
	paidExpense(t, s, "Nómina", "Planta", "2024-03-05", "150000")

	err = s.DeleteBudget(ctx, b.ID, "")
	assert.True(t, apperr.IsPolicy(err), "got %v", err)
	err = s.DeleteBudget(ctx, b.ID, "1111")
	assert.True(t, apperr.IsPolicy(err))

	require.NoError(t, s.DeleteBudget(ctx, b.ID, "2468"))
	_, err = s.GetBudget(ctx, b.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestDeleteBudgetWithoutSpendNeedsNoToken(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	b, err := s.CreateBudget(ctx, BudgetInput{Period: month("2024-03"), Category: "Otros", Amount: dec("10")})
	require.NoError(t, err)
	require.NoError(t, s.DeleteBudget(ctx, b.ID, ""))
}

func TestBudgetSummary(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	m := month("2024-03")

	for _, in := range []BudgetInput{
		{Period: m, Category: "A", Amount: dec("100")},
		{Period: m, Category: "B", Amount: dec("100")},
		{Period: m, Category: "C", Amount: dec("100")},
	} {
		_, err := s.CreateBudget(ctx, in)
		require.NoError(t, err)
	}
	paidExpense(t, s, "B", "", "2024-03-03", "95")
	paidExpense(t, s, "C", "", "2024-03-03", "130")

	sum, err := s.BudgetSummary(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Count)
	assert.Equal(t, 1, sum.OK)
	assert.Equal(t, 1, sum.Near)
	assert.Equal(t, 1, sum.Exceeded)
	assert.True(t, sum.Remaining.Equal(dec("75")))
}
