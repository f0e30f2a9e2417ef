package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"

	"checkin-desk/internal/checkin"
	"checkin-desk/internal/config"
	"checkin-desk/internal/formulas"
	"checkin-desk/internal/storage"
)

type desk struct {
	service  *checkin.Service
	formulas *formulas.Manager
	wb       *storage.Workbook
	cfg      *config.Config
}

func startCLI(ctx context.Context, stop context.CancelFunc, d *desk) {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Println("\nCommands:")
		fmt.Println("  1. Check in attendee")
		fmt.Println("  2. View check-ins")
		fmt.Println("  3. Show message template")
		fmt.Println("  4. Update message template")
		fmt.Println("  5. Back up formulas")
		fmt.Println("  6. Restore formulas")
		fmt.Println("  7. Import directory from CSV")
		fmt.Println("  8. Exit")
		fmt.Print("\nEnter command (1-8): ")

		if !scanner.Scan() {
			return
		}

		switch strings.TrimSpace(scanner.Text()) {
		case "1":
			d.checkIn(ctx, scanner)
		case "2":
			d.viewCheckIns(ctx)
		case "3":
			fmt.Printf("\nCurrent template:\n%s\n", d.service.Template())
		case "4":
			d.updateTemplate(scanner)
		case "5":
			d.backupFormulas(ctx)
		case "6":
			d.restoreFormulas(ctx)
		case "7":
			d.importDirectory(ctx, scanner)
		case "8":
			fmt.Println("Exiting...")
			stop()
			return
		default:
			fmt.Println("Invalid command. Please try again.")
		}
	}
}

func prompt(scanner *bufio.Scanner, label string) (string, bool) {
	fmt.Print(label)
	if !scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(scanner.Text()), true
}

func (d *desk) checkIn(ctx context.Context, scanner *bufio.Scanner) {
	identifier, ok := prompt(scanner, "Enter identifier or phone number: ")
	if !ok {
		return
	}

	res := d.service.CheckIn(ctx, identifier)
	if res.Success {
		fmt.Printf("✅ %s\n", res.Message)
	} else {
		fmt.Printf("❌ %s\n", res.Message)
	}
}

func (d *desk) viewCheckIns(ctx context.Context) {
	list, err := d.service.CheckIns(ctx)
	if err != nil {
		fmt.Printf("❌ Error reading check-ins: %v\n", err)
		return
	}
	if len(list) == 0 {
		fmt.Println("\nNo check-ins yet.")
		return
	}

	fmt.Printf("\n📋 Check-ins (%d total):\n", len(list))
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Row", "Identifier", "Time"})
	for _, c := range list {
		at := ""
		if !c.At.IsZero() {
			at = c.At.Format("2006-01-02 15:04:05")
		}
		table.Append([]string{fmt.Sprint(c.Row), c.Identifier, at})
	}
	table.Render()
}

func (d *desk) updateTemplate(scanner *bufio.Scanner) {
	fmt.Println("Placeholders use column names, e.g. {{name}}.")
	tpl, ok := prompt(scanner, "Enter new template: ")
	if !ok {
		return
	}

	res := d.service.UpdateTemplate(tpl)
	if res.Success {
		fmt.Printf("✅ %s\n", res.Message)
	} else {
		fmt.Printf("❌ %s\n", res.Message)
	}
}

func (d *desk) backupFormulas(ctx context.Context) {
	cells, err := d.formulas.Backup(ctx)
	if err != nil {
		fmt.Printf("❌ Backup failed: %v\n", err)
		return
	}
	fmt.Printf("✅ Backed up %d formulas:\n%s\n", len(cells), strings.Join(cells, "\n"))
}

func (d *desk) restoreFormulas(ctx context.Context) {
	cells, err := d.formulas.Restore(ctx)
	if errors.Is(err, formulas.ErrNoBackup) {
		fmt.Println("No formula backup found.")
		return
	}
	if err != nil {
		fmt.Printf("❌ Restore failed: %v\n", err)
		return
	}
	fmt.Printf("✅ Restored %d formulas:\n%s\n", len(cells), strings.Join(cells, "\n"))
}

func (d *desk) importDirectory(ctx context.Context, scanner *bufio.Scanner) {
	path, ok := prompt(scanner, "Enter CSV path (first line is the header): ")
	if !ok || path == "" {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		return
	}
	defer f.Close()

	n, err := d.wb.ImportCSV(ctx, d.cfg.DirectorySheet, f)
	if err != nil {
		fmt.Printf("❌ Import failed: %v\n", err)
		return
	}
	fmt.Printf("✅ Imported %d attendees into %q\n", n, d.cfg.DirectorySheet)
}
