package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/auth"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/doctor"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/inventory"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/settings"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo doctors, inventory and staff profiles into an empty database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()
			return seed(cmd.Context(), e)
		},
	}
}

var demoDoctors = []doctor.Doctor{
	{FirstName: "Rajesh", LastName: "Sharma", Email: "dr.sharma@hospital.com", Department: "Cardiology",
		Specialization: "Interventional Cardiology", Qualification: "MD, DM", ExperienceYears: 15,
		AvailableDays: []string{"Mon", "Tue", "Thu", "Fri"}, AvailableHours: doctor.Hours{Start: "09:00", End: "17:00"}},
	{FirstName: "Priya", LastName: "Patel", Email: "dr.patel@hospital.com", Department: "Pediatrics",
		Specialization: "Neonatology", Qualification: "MD", ExperienceYears: 9,
		AvailableDays: []string{"Mon", "Wed", "Fri", "Sat"}, AvailableHours: doctor.Hours{Start: "10:00", End: "18:00"}},
	{FirstName: "Anil", LastName: "Kumar", Email: "dr.kumar@hospital.com", Department: "Orthopedics",
		Specialization: "Joint Replacement", Qualification: "MS", ExperienceYears: 12,
		AvailableDays: []string{"Tue", "Wed", "Thu"}, AvailableHours: doctor.Hours{Start: "08:30", End: "14:30"}},
	{FirstName: "Meera", LastName: "Iyer", Email: "dr.iyer@hospital.com", Department: "Neurology",
		Specialization: "Epilepsy", Qualification: "MD, DM", ExperienceYears: 11,
		AvailableDays: []string{"Mon", "Thu", "Sat"}, AvailableHours: doctor.Hours{Start: "11:00", End: "19:00"}},
}

// Prices are in paise.
var demoInventory = []inventory.Item{
	{Name: "Paracetamol 500mg", Category: "Medicine", Quantity: 450, Unit: "tablets", UnitPrice: 200, ReorderLevel: 100, Supplier: "MedSupply Co", Location: "Pharmacy A1"},
	{Name: "Amoxicillin 250mg", Category: "Medicine", Quantity: 180, Unit: "capsules", UnitPrice: 850, ReorderLevel: 50, Supplier: "PharmaDirect", Location: "Pharmacy A2"},
	{Name: "Insulin Glargine", Category: "Medicine", Quantity: 12, Unit: "vials", UnitPrice: 65000, ReorderLevel: 20, Supplier: "PharmaDirect", Location: "Cold Store 1"},
	{Name: "Surgical Gloves", Category: "Consumables", Quantity: 900, Unit: "pairs", UnitPrice: 1500, ReorderLevel: 200, Supplier: "MedSupply Co", Location: "Store B3"},
	{Name: "Normal Saline 500ml", Category: "IV Fluids", Quantity: 60, Unit: "bottles", UnitPrice: 4500, ReorderLevel: 40, Supplier: "MedSupply Co", Location: "Store B1"},
}

func seed(ctx context.Context, e *env) error {
	logger := e.logger

	doctors := doctor.NewService(doctor.NewPGStore(e.pool), logger)
	page, err := doctors.List(ctx, listing.Params{Limit: 1})
	if err != nil {
		return err
	}
	if page.Total == 0 {
		for i := range demoDoctors {
			d := demoDoctors[i]
			if _, err := doctors.Create(ctx, &d); err != nil {
				return fmt.Errorf("seed doctor %s: %w", d.Email, err)
			}
		}
		logger.Info("doctors seeded", zap.Int("count", len(demoDoctors)))
	} else {
		logger.Info("doctors present, skipping", zap.Int("count", page.Total))
	}

	stock := inventory.NewService(inventory.NewPGStore(e.pool), logger)
	items, err := stock.List(ctx, listing.Params{Limit: 1})
	if err != nil {
		return err
	}
	if items.Total == 0 {
		for i := range demoInventory {
			it := demoInventory[i]
			if _, err := stock.Create(ctx, &it); err != nil {
				return fmt.Errorf("seed item %s: %w", it.Name, err)
			}
		}
		logger.Info("inventory seeded", zap.Int("count", len(demoInventory)))
	} else {
		logger.Info("inventory present, skipping", zap.Int("count", items.Total))
	}

	profiles := settings.NewService(settings.NewPGStore(e.pool), logger)
	for _, a := range auth.DemoAccounts() {
		if _, err := profiles.EnsureProfile(ctx, auth.LocalID(a.Email), a.Email, a.Role); err != nil {
			return fmt.Errorf("seed profile %s: %w", a.Email, err)
		}
	}
	logger.Info("demo profiles ensured", zap.Int("count", len(auth.DemoAccounts())))
	return nil
}
