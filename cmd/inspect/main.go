package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"mega-relay/domain"
	"mega-relay/infrastructure/storage"
)

// Offline dump of the relay database: users, recent transfers and whatever
// the active-task mirror held when the process last wrote it.
func main() {
	dbPath := flag.String("db", "/tmp/mega-relay-db", "Path to badger DB")
	limit := flag.Int("limit", 20, "Max transfer log entries")
	userID := flag.Int64("user", 0, "Show a single user instead of skipping the section")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLogger(nil))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *userID != 0 {
		printUser(storage.NewUserRepository(db, logger), *userID)
	}
	printActiveTasks(storage.NewActiveTaskRepository(db, logger))
	printTransferLog(storage.NewTransferLogRepository(db, logger), *limit)
}

func printUser(repo *storage.UserRepository, id int64) {
	color.Cyan.Println("== User ==")

	user, err := repo.Get(id)
	if err != nil {
		color.Yellow.Printf("No record for user %d: %v\n\n", id, err)
		return
	}

	table := newTable([]string{"ID", "Username", "Joined", "Downloads", "Total Size", "Last Active"})
	table.Append([]string{
		fmt.Sprintf("%d", user.ID),
		user.Username,
		user.JoinedAt.Format("2006-01-02"),
		fmt.Sprintf("%d", user.TotalDownloads),
		domain.FormatBytes(user.TotalBytes),
		user.LastActive.Format("2006-01-02 15:04"),
	})
	table.Render()
	fmt.Println()
}

func printActiveTasks(repo *storage.ActiveTaskRepository) {
	color.Cyan.Println("== Active tasks ==")

	tasks, err := repo.List()
	if err != nil {
		log.Fatal(err)
	}
	if len(tasks) == 0 {
		color.Green.Println("None")
		fmt.Println()
		return
	}

	table := newTable([]string{"Task", "User", "Chat", "Status", "Link", "Updated"})
	for _, task := range tasks {
		table.Append([]string{
			shorten(task.ID),
			fmt.Sprintf("%d", task.UserID),
			fmt.Sprintf("%d", task.ChatID),
			string(task.Status),
			task.Link,
			task.UpdatedAt.Format("15:04:05"),
		})
	}
	table.Render()
	fmt.Println()
}

func printTransferLog(repo *storage.TransferLogRepository, limit int) {
	color.Cyan.Printf("== Last %d transfers ==\n", limit)

	records, err := repo.Recent(limit)
	if err != nil {
		log.Fatal(err)
	}

	table := newTable([]string{"At", "User", "File", "Size", "Result"})
	for _, record := range records {
		result := color.Green.Sprint("ok")
		if !record.Success {
			result = color.Red.Sprint(record.Error)
		}
		table.Append([]string{
			record.At.Format("01-02 15:04:05"),
			fmt.Sprintf("%d", record.UserID),
			record.FileName,
			domain.FormatBytes(record.FileSize),
			result,
		})
	}
	table.Render()
}

func newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func shorten(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
