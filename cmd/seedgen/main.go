package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/vitaly-zn/coupons-project-back-end/internal/model"
	"github.com/vitaly-zn/coupons-project-back-end/internal/seed"

	"github.com/shopspring/decimal"
)

// seedgen writes a sample seed file with a few companies, customers and
// coupons. Some coupons are already expired relative to the run date so the
// expiration sweeper has work to do, and some are sold out.
func main() {
	out := flag.String("out", "data/seed/sample.jsonl.gz", "output file")
	customers := flag.Int("customers", 20, "number of customers to generate")
	flag.Parse()

	if err := os.MkdirAll(filepath.Dir(*out), 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	fixtures := sampleFixtures(model.DateOf(time.Now()), *customers)
	if err := writeFile(*out, fixtures); err != nil {
		log.Fatalf("Failed to create %s: %v", *out, err)
	}

	fmt.Printf("Created %s with %d companies, %d customers and %d coupons\n",
		*out, len(fixtures.Companies), len(fixtures.Customers), len(fixtures.Coupons))
}

func sampleFixtures(today model.Date, customers int) *seed.Fixtures {
	f := &seed.Fixtures{
		Companies: []model.Company{
			{ID: 1, Name: "Blue Lagoon Resorts", Email: "deals@bluelagoon.example"},
			{ID: 2, Name: "Iron Gym", Email: "hello@irongym.example"},
			{ID: 3, Name: "Green Bowl", Email: "orders@greenbowl.example"},
		},
	}

	for i := 1; i <= customers; i++ {
		f.Customers = append(f.Customers, model.Customer{
			ID:        int64(i),
			FirstName: fmt.Sprintf("Customer%d", i),
			LastName:  "Sample",
			Email:     fmt.Sprintf("customer%d@example.com", i),
		})
	}

	coupon := func(companyID int64, cat model.Category, title string, startOffset, endOffset, amount int, price string) model.Coupon {
		return model.Coupon{
			CompanyID:   companyID,
			Category:    cat,
			Title:       title,
			Description: title + " offer",
			StartDate:   today.AddDays(startOffset),
			EndDate:     today.AddDays(endOffset),
			Amount:      amount,
			Price:       decimal.RequireFromString(price),
			Image:       "images/sample.png",
		}
	}

	f.Coupons = []model.Coupon{
		coupon(1, model.CategoryVacation, "Weekend for two", -10, 60, 25, "399.90"),
		coupon(1, model.CategoryVacation, "Spa day", -30, -1, 10, "120.00"),
		coupon(1, model.CategoryRestaurant, "Sunset dinner", 0, 30, 1, "89.50"),
		coupon(2, model.CategorySport, "Monthly pass", -5, 25, 100, "49.99"),
		coupon(2, model.CategorySport, "Personal training", -60, -7, 5, "75.00"),
		coupon(2, model.CategoryHealthy, "Nutrition plan", 0, 0, 0, "30.00"),
		coupon(3, model.CategoryRestaurant, "Lunch bowl", -1, 14, 200, "9.90"),
		coupon(3, model.CategoryHealthy, "Smoothie week", 1, 8, 50, "19.00"),
	}
	return f
}

func writeFile(path string, f *seed.Fixtures) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := seed.Encode(file, f); err != nil {
		return fmt.Errorf("failed to write fixtures: %w", err)
	}
	return file.Close()
}
