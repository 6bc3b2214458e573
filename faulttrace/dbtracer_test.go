package faulttrace

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/demandpaging/datarecording"
)

var _ = Describe("DBTracer", func() {
	var (
		db       *sql.DB
		recorder datarecording.DataRecorder
		reader   datarecording.DataReader
	)

	BeforeEach(func() {
		var err error
		db, err = sql.Open("sqlite3", ":memory:")
		Expect(err).NotTo(HaveOccurred())
		db.SetMaxOpenConns(1)

		recorder = datarecording.NewWithDB(db)
		reader = datarecording.NewReaderWithDB(db)
	})

	AfterEach(func() {
		Expect(recorder.Close()).To(Succeed())
	})

	It("should create one table per event type", func() {
		NewDBTracer(recorder)

		Expect(recorder.ListTables()).To(Equal([]string{
			TableCowFaults,
			TablePageFaults,
			TableSegmentLoads,
			TableSwapEvents,
			TableUnresolved,
		}))
	})

	It("should record the events", func() {
		runWorkload(NewDBTracer(recorder))
		recorder.Flush()

		ctx := context.Background()
		counts := map[string]int{
			TablePageFaults:   9,
			TableSwapEvents:   3,
			TableSegmentLoads: 1,
			TableCowFaults:    1,
			TableUnresolved:   3,
		}

		for table, want := range counts {
			n, err := reader.CountRows(ctx, table)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(want), table)
		}

		var evictions int
		err := db.QueryRow(
			"SELECT COUNT(*) FROM swap_events WHERE What = 'EvictPage'",
		).Scan(&evictions)
		Expect(err).NotTo(HaveOccurred())
		Expect(evictions).To(Equal(2))
	})
})
