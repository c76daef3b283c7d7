package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/kubev2v/cost-estimator/internal/config"
	"github.com/kubev2v/cost-estimator/internal/service"
	"github.com/kubev2v/cost-estimator/internal/store"
	"github.com/kubev2v/cost-estimator/internal/store/model"
	"github.com/kubev2v/cost-estimator/pkg/cost"
	"github.com/kubev2v/cost-estimator/pkg/migrations"
	"github.com/kubev2v/cost-estimator/pkg/operation"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

const (
	insertEstimateStm = "INSERT INTO pessimistic_estimator (estimate_key, current_value, samples) VALUES (?, ?, ?);"
)

func uniform(v uint64) cost.Vector {
	return cost.Vector{Runtime: v, WriteLength: v, WriteCount: v, ReadLength: v, ReadCount: v}
}

var _ = Describe("cost estimator", Ordered, func() {
	var (
		s         store.Store
		gormdb    *gorm.DB
		estimator *service.CostEstimator
		dir       string
		dbPath    string
		failOnKey string
	)

	transfer := operation.TokenTransfer{}

	BeforeAll(func() {
		var err error
		dir, err = os.MkdirTemp("", "estimator-test")
		Expect(err).To(BeNil())
		dbPath = filepath.Join(dir, "estimates.sqlite")

		cfg := config.NewSqlite(dbPath)
		db, err := store.InitDB(cfg)
		Expect(err).To(BeNil())
		Expect(migrations.MigrateStore(db, cfg.Database.Type)).To(Succeed())

		// fails the write of one estimate key while failOnKey is set
		err = db.Callback().Create().Before("gorm:create").Register("test:fail_write", func(tx *gorm.DB) {
			if failOnKey == "" {
				return
			}
			if row, ok := tx.Statement.Dest.(*model.Estimate); ok && row.EstimateKey == failOnKey {
				_ = tx.AddError(errors.New("injected write failure"))
			}
		})
		Expect(err).To(BeNil())

		gormdb = db
		s = store.NewStore(db)
		estimator = service.NewCostEstimator(s)
	})

	AfterAll(func() {
		s.Close()
		os.RemoveAll(dir)
	})

	Context("notify and estimate", func() {
		It("estimates the single observed cost", func() {
			actual := cost.Vector{Runtime: 5, WriteLength: 7, WriteCount: 3, ReadLength: 11, ReadCount: 2}
			Expect(estimator.NotifyEvent(context.TODO(), transfer, actual)).To(Succeed())

			estimate, err := estimator.EstimateCost(context.TODO(), transfer)
			Expect(err).To(BeNil())
			Expect(estimate).To(Equal(actual))
		})

		It("keeps the ten highest samples", func() {
			for i := uint64(1); i <= 11; i++ {
				Expect(estimator.NotifyEvent(context.TODO(), transfer, cost.Vector{Runtime: i})).To(Succeed())
			}

			estimate, err := estimator.EstimateCost(context.TODO(), transfer)
			Expect(err).To(BeNil())
			Expect(estimate.Runtime).To(Equal(uint64(6)))
			Expect(estimate.ReadCount).To(Equal(uint64(0)))

			window, err := s.Estimate().ReadWindow(context.TODO(), service.EstimateKey("stx-transfer", cost.Runtime))
			Expect(err).To(BeNil())
			Expect(window.Values()).To(ConsistOf(uint64(2), uint64(3), uint64(4), uint64(5), uint64(6), uint64(7), uint64(8), uint64(9), uint64(10), uint64(11)))
		})

		It("ignores samples below the window minimum", func() {
			for i := uint64(10); i < 20; i++ {
				Expect(estimator.NotifyEvent(context.TODO(), transfer, uniform(i))).To(Succeed())
			}
			before, err := estimator.EstimateCost(context.TODO(), transfer)
			Expect(err).To(BeNil())

			Expect(estimator.NotifyEvent(context.TODO(), transfer, uniform(1))).To(Succeed())

			after, err := estimator.EstimateCost(context.TODO(), transfer)
			Expect(err).To(BeNil())
			Expect(after).To(Equal(before))
		})

		It("fails for a class never observed", func() {
			Expect(estimator.NotifyEvent(context.TODO(), transfer, uniform(1))).To(Succeed())

			_, err := estimator.EstimateCost(context.TODO(), operation.Coinbase{})
			Expect(err).ToNot(BeNil())
			var noEstimate *service.ErrNoEstimateAvailable
			Expect(errors.As(err, &noEstimate)).To(BeTrue())
		})

		It("fails for a partially observed class", func() {
			tx := gormdb.Exec(insertEstimateStm, "coinbase:runtime", 4, "[4]")
			Expect(tx.Error).To(BeNil())

			_, err := estimator.EstimateCost(context.TODO(), operation.Coinbase{})
			var noEstimate *service.ErrNoEstimateAvailable
			Expect(errors.As(err, &noEstimate)).To(BeTrue())
		})

		It("returns the same estimate without new observations", func() {
			Expect(estimator.NotifyEvent(context.TODO(), transfer, uniform(3))).To(Succeed())
			Expect(estimator.NotifyEvent(context.TODO(), transfer, uniform(8))).To(Succeed())

			first, err := estimator.EstimateCost(context.TODO(), transfer)
			Expect(err).To(BeNil())
			second, err := estimator.EstimateCost(context.TODO(), transfer)
			Expect(err).To(BeNil())
			Expect(second).To(Equal(first))
			Expect(first).To(Equal(uniform(5)))
		})

		It("keeps classes apart", func() {
			call := operation.ContractCall{ContractAddress: "SP000", ContractName: "pox", FunctionName: "stack-stx"}
			other := operation.ContractCall{ContractAddress: "SP000", ContractName: "pox", FunctionName: "delegate-stx"}

			Expect(estimator.NotifyEvent(context.TODO(), call, uniform(100))).To(Succeed())
			Expect(estimator.NotifyEvent(context.TODO(), transfer, uniform(1))).To(Succeed())

			estimate, err := estimator.EstimateCost(context.TODO(), call)
			Expect(err).To(BeNil())
			Expect(estimate).To(Equal(uniform(100)))

			_, err = estimator.EstimateCost(context.TODO(), other)
			var noEstimate *service.ErrNoEstimateAvailable
			Expect(errors.As(err, &noEstimate)).To(BeTrue())
		})

		It("uses the configured classifier", func() {
			grouped := service.NewCostEstimator(s, service.WithClassifier(func(operation.Operation) string { return "all" }))

			Expect(grouped.NotifyEvent(context.TODO(), transfer, uniform(2))).To(Succeed())
			Expect(grouped.NotifyEvent(context.TODO(), operation.Coinbase{}, uniform(4))).To(Succeed())

			estimate, err := grouped.EstimateCost(context.TODO(), operation.PoisonMicroblock{})
			Expect(err).To(BeNil())
			Expect(estimate).To(Equal(uniform(3)))

			count := 0
			tx := gormdb.Raw("SELECT COUNT(*) FROM pessimistic_estimator WHERE estimate_key LIKE 'all:%';").Scan(&count)
			Expect(tx.Error).To(BeNil())
			Expect(count).To(Equal(5))
		})

		AfterEach(func() {
			gormdb.Exec("DELETE FROM pessimistic_estimator;")
		})
	})

	Context("atomicity", func() {
		It("records nothing when one dimension fails", func() {
			Expect(estimator.NotifyEvent(context.TODO(), transfer, uniform(4))).To(Succeed())

			failOnKey = service.EstimateKey("stx-transfer", cost.ReadLength)
			err := estimator.NotifyEvent(context.TODO(), transfer, uniform(10))
			failOnKey = ""
			Expect(err).ToNot(BeNil())
			var storageErr *store.ErrStorage
			Expect(errors.As(err, &storageErr)).To(BeTrue())

			// dimensions written before the failure were rolled back
			estimate, err := estimator.EstimateCost(context.TODO(), transfer)
			Expect(err).To(BeNil())
			Expect(estimate).To(Equal(uniform(4)))

			window, err := s.Estimate().ReadWindow(context.TODO(), service.EstimateKey("stx-transfer", cost.Runtime))
			Expect(err).To(BeNil())
			Expect(window.Values()).To(Equal([]uint64{4}))
		})

		It("creates no row when the first observation fails", func() {
			failOnKey = service.EstimateKey("coinbase", cost.ReadCount)
			err := estimator.NotifyEvent(context.TODO(), operation.Coinbase{}, uniform(10))
			failOnKey = ""
			Expect(err).ToNot(BeNil())

			count := 0
			tx := gormdb.Raw("SELECT COUNT(*) FROM pessimistic_estimator;").Scan(&count)
			Expect(tx.Error).To(BeNil())
			Expect(count).To(Equal(0))
		})

		It("fails on corrupted samples and changes nothing", func() {
			Expect(estimator.NotifyEvent(context.TODO(), transfer, uniform(4))).To(Succeed())
			tx := gormdb.Exec("UPDATE pessimistic_estimator SET samples = 'garbage' WHERE estimate_key = ?", "stx-transfer:write-count")
			Expect(tx.Error).To(BeNil())

			err := estimator.NotifyEvent(context.TODO(), transfer, uniform(10))
			Expect(err).ToNot(BeNil())
			var derr *store.ErrDeserialization
			Expect(errors.As(err, &derr)).To(BeTrue())

			window, err := s.Estimate().ReadWindow(context.TODO(), service.EstimateKey("stx-transfer", cost.Runtime))
			Expect(err).To(BeNil())
			Expect(window.Values()).To(Equal([]uint64{4}))
		})

		It("fails on a negative stored estimate", func() {
			Expect(estimator.NotifyEvent(context.TODO(), transfer, uniform(4))).To(Succeed())
			tx := gormdb.Exec("UPDATE pessimistic_estimator SET current_value = -1 WHERE estimate_key = ?", "stx-transfer:runtime")
			Expect(tx.Error).To(BeNil())

			_, err := estimator.EstimateCost(context.TODO(), transfer)
			var derr *store.ErrDeserialization
			Expect(errors.As(err, &derr)).To(BeTrue())
		})

		AfterEach(func() {
			failOnKey = ""
			gormdb.Exec("DELETE FROM pessimistic_estimator;")
		})
	})

	Context("caller transaction", func() {
		It("leaves the commit to the caller", func() {
			txCtx, err := s.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())
			defer func() { _, _ = store.Rollback(txCtx) }()

			Expect(estimator.NotifyEvent(txCtx, transfer, uniform(7))).To(Succeed())
			Expect(store.FromContext(txCtx)).ToNot(BeNil())

			// not visible until the caller commits
			_, err = estimator.EstimateCost(context.TODO(), transfer)
			var noEstimate *service.ErrNoEstimateAvailable
			Expect(errors.As(err, &noEstimate)).To(BeTrue())

			_, err = store.Commit(txCtx)
			Expect(err).To(BeNil())

			estimate, err := estimator.EstimateCost(context.TODO(), transfer)
			Expect(err).To(BeNil())
			Expect(estimate).To(Equal(uniform(7)))
		})

		It("does not roll back the caller transaction on failure", func() {
			txCtx, err := s.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())
			defer func() { _, _ = store.Rollback(txCtx) }()

			Expect(estimator.NotifyEvent(txCtx, transfer, uniform(3))).To(Succeed())

			failOnKey = service.EstimateKey("coinbase", cost.Runtime)
			err = estimator.NotifyEvent(txCtx, operation.Coinbase{}, uniform(9))
			failOnKey = ""
			Expect(err).ToNot(BeNil())

			// the caller still owns a live transaction and decides its fate
			Expect(store.FromContext(txCtx)).ToNot(BeNil())
			_, err = store.Commit(txCtx)
			Expect(err).To(BeNil())

			estimate, err := estimator.EstimateCost(context.TODO(), transfer)
			Expect(err).To(BeNil())
			Expect(estimate).To(Equal(uniform(3)))
		})

		It("discards the writes when the caller rolls back", func() {
			txCtx, err := s.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			Expect(estimator.NotifyEvent(txCtx, transfer, uniform(5))).To(Succeed())
			_, err = store.Rollback(txCtx)
			Expect(err).To(BeNil())

			count := 0
			tx := gormdb.Raw("SELECT COUNT(*) FROM pessimistic_estimator;").Scan(&count)
			Expect(tx.Error).To(BeNil())
			Expect(count).To(Equal(0))
		})

		AfterEach(func() {
			failOnKey = ""
			gormdb.Exec("DELETE FROM pessimistic_estimator;")
		})
	})

	Context("concurrency", func() {
		It("records every concurrent observation", func() {
			var wg sync.WaitGroup
			errs := make(chan error, 16)
			for i := uint64(1); i <= 16; i++ {
				wg.Add(1)
				go func(v uint64) {
					defer wg.Done()
					errs <- estimator.NotifyEvent(context.TODO(), transfer, uniform(v))
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				Expect(err).To(BeNil())
			}

			// the window holds 7..16
			estimate, err := estimator.EstimateCost(context.TODO(), transfer)
			Expect(err).To(BeNil())
			Expect(estimate).To(Equal(uniform(11)))
		})

		AfterEach(func() {
			gormdb.Exec("DELETE FROM pessimistic_estimator;")
		})
	})

	Context("estimate error logging", func() {
		It("does not gate the observation", func() {
			logging := service.NewCostEstimator(s, service.WithEstimateErrorLogging(cost.BlockLimit, cost.ProportionResolution))

			// no prior estimate
			Expect(logging.NotifyEvent(context.TODO(), transfer, uniform(6))).To(Succeed())
			// with a prior estimate
			Expect(logging.NotifyEvent(context.TODO(), transfer, uniform(2))).To(Succeed())

			estimate, err := logging.EstimateCost(context.TODO(), transfer)
			Expect(err).To(BeNil())
			Expect(estimate).To(Equal(uniform(4)))
		})

		It("ignores an unreadable prior estimate", func() {
			logging := service.NewCostEstimator(s, service.WithEstimateErrorLogging(cost.BlockLimit, cost.ProportionResolution))

			Expect(logging.NotifyEvent(context.TODO(), transfer, uniform(6))).To(Succeed())
			tx := gormdb.Exec("UPDATE pessimistic_estimator SET current_value = -1;")
			Expect(tx.Error).To(BeNil())

			Expect(logging.NotifyEvent(context.TODO(), transfer, uniform(2))).To(Succeed())

			estimate, err := logging.EstimateCost(context.TODO(), transfer)
			Expect(err).To(BeNil())
			Expect(estimate).To(Equal(uniform(4)))
		})

		AfterEach(func() {
			gormdb.Exec("DELETE FROM pessimistic_estimator;")
		})
	})

	Context("list", func() {
		It("lists the decoded estimates highest first", func() {
			call := operation.ContractCall{ContractAddress: "SP000", ContractName: "pox", FunctionName: "stack-stx"}
			Expect(estimator.NotifyEvent(context.TODO(), call, cost.Vector{Runtime: 90, ReadCount: 1})).To(Succeed())
			Expect(estimator.NotifyEvent(context.TODO(), transfer, uniform(5))).To(Succeed())
			tx := gormdb.Exec(insertEstimateStm, "not-a-key", 1000, "[1000]")
			Expect(tx.Error).To(BeNil())

			records, err := estimator.ListEstimates(context.TODO(), "", 0)
			Expect(err).To(BeNil())
			Expect(records).To(HaveLen(10))
			Expect(records[0]).To(Equal(service.EstimateRecord{
				Class:     "cc:pox.stack-stx",
				Dimension: "runtime",
				Value:     90,
				Samples:   []uint64{90},
			}))

			records, err = estimator.ListEstimates(context.TODO(), "stx-transfer", 2)
			Expect(err).To(BeNil())
			Expect(records).To(HaveLen(2))
			for _, r := range records {
				Expect(r.Class).To(Equal("stx-transfer"))
				Expect(r.Value).To(Equal(uint64(5)))
			}
		})

		AfterEach(func() {
			gormdb.Exec("DELETE FROM pessimistic_estimator;")
		})
	})
})

var _ = Describe("open", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "estimator-open-test")
		Expect(err).To(BeNil())
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	It("creates the storage and keeps it across reopen", func() {
		cfg := config.NewSqlite(filepath.Join(dir, "estimates.sqlite"))

		estimator, err := service.Open(cfg)
		Expect(err).To(BeNil())
		call := operation.ContractCall{ContractAddress: "SP000", ContractName: "pox", FunctionName: "stack-stx"}
		Expect(estimator.NotifyEvent(context.TODO(), call, uniform(3))).To(Succeed())
		Expect(estimator.NotifyEvent(context.TODO(), call, uniform(9))).To(Succeed())
		Expect(estimator.Close()).To(Succeed())

		reopened, err := service.Open(cfg)
		Expect(err).To(BeNil())
		defer reopened.Close()

		estimate, err := reopened.EstimateCost(context.TODO(), call)
		Expect(err).To(BeNil())
		Expect(estimate).To(Equal(uniform(6)))
	})

	It("enables estimate error logging from the configuration", func() {
		cfg := config.NewSqlite(filepath.Join(dir, "estimates.sqlite"))
		cfg.Service.LogEstimateError = true

		estimator, err := service.Open(cfg)
		Expect(err).To(BeNil())
		defer estimator.Close()

		Expect(estimator.NotifyEvent(context.TODO(), operation.TokenTransfer{}, uniform(3))).To(Succeed())
		Expect(estimator.NotifyEvent(context.TODO(), operation.TokenTransfer{}, uniform(5))).To(Succeed())
	})

	It("fails on a location that cannot be created", func() {
		cfg := config.NewSqlite(filepath.Join(dir, "missing", "estimates.sqlite"))

		_, err := service.Open(cfg)
		Expect(err).ToNot(BeNil())
		var unavailable *service.ErrStorageUnavailable
		Expect(errors.As(err, &unavailable)).To(BeTrue())
	})

	It("fails on a file that is not a database", func() {
		path := filepath.Join(dir, "estimates.sqlite")
		garbage := make([]byte, 4096)
		for i := range garbage {
			garbage[i] = byte(i%251) + 1
		}
		Expect(os.WriteFile(path, garbage, 0600)).To(Succeed())

		_, err := service.Open(config.NewSqlite(path))
		Expect(err).ToNot(BeNil())
		var unavailable *service.ErrStorageUnavailable
		Expect(errors.As(err, &unavailable)).To(BeTrue())
	})
})
