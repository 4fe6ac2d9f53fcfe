package transport

import (
	"fmt"
	"sort"
	"sync"

	"github.com/argus-sat/splat/clog"
	"github.com/argus-sat/splat/codec"
	"github.com/argus-sat/splat/compress"
	"github.com/argus-sat/splat/errs"
	"github.com/argus-sat/splat/format"
	"github.com/argus-sat/splat/internal/options"
)

// MaxTransactions is the cap on concurrently active transactions per
// direction, fixed by the 3-bit transaction id.
const MaxTransactions = codec.MaxFragmentTid + 1

// Manager is the process-wide registry of active transactions: up to eight
// outbound (TX) and eight inbound (RX), in two disjoint maps keyed by tid.
//
// All access to the maps is serialized by a single mutex; the transactions
// they hold are not locked by it.
type Manager struct {
	mu  sync.Mutex
	cdc *codec.Codec
	log clog.Clog

	tx map[uint8]*Transaction
	rx map[uint8]*Transaction

	historyFolder   string
	dumpCompression format.CompressionType
}

// ManagerOption configures a Manager.
type ManagerOption = options.Option[*Manager]

// WithHistoryFolder sets the default folder for transaction dumps.
func WithHistoryFolder(folder string) ManagerOption {
	return options.NoError(func(m *Manager) { m.historyFolder = folder })
}

// WithDumpCompression selects the compression codec for transaction dumps.
func WithDumpCompression(ct format.CompressionType) ManagerOption {
	return options.New(func(m *Manager) error {
		if _, err := compress.GetCodec(ct); err != nil {
			return err
		}
		m.dumpCompression = ct

		return nil
	})
}

// WithLogger replaces the manager's logger. Transactions created afterwards
// inherit it.
func WithLogger(log clog.Clog) ManagerOption {
	return options.NoError(func(m *Manager) { m.log = log })
}

// NewManager creates an empty manager bound to the given codec.
func NewManager(cdc *codec.Codec, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		cdc:             cdc,
		log:             clog.NewLogger("transport: "),
		tx:              make(map[uint8]*Transaction, MaxTransactions),
		rx:              make(map[uint8]*Transaction, MaxTransactions),
		historyFolder:   "transaction_history",
		dumpCompression: format.CompressionNone,
	}
	if err := options.Apply(m, opts...); err != nil {
		return nil, err
	}

	return m, nil
}

// CreateTx creates a sending-side transaction for the file at filePath,
// allocating the smallest unused tid. Fails with ErrManagerFull when all
// eight slots are taken.
func (m *Manager) CreateTx(filePath string) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tid, ok := m.freeTid()
	if !ok {
		return nil, fmt.Errorf("%w: %d TX transactions active", errs.ErrManagerFull, len(m.tx))
	}

	return m.createTxLocked(tid, filePath)
}

// CreateTxWithTid creates a sending-side transaction on a specific tid. An
// existing transaction on that tid is overwritten with a warning.
func (m *Manager) CreateTxWithTid(tid uint8, filePath string) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tx[tid]; exists {
		m.log.Warn("overwriting existing TX transaction with tid=%d", tid)
	}

	return m.createTxLocked(tid, filePath)
}

func (m *Manager) createTxLocked(tid uint8, filePath string) (*Transaction, error) {
	t, err := NewTxTransaction(m.cdc, tid, filePath)
	if err != nil {
		return nil, err
	}
	t.SetLogger(m.log)
	m.tx[tid] = t
	m.log.Debug("created TX transaction with tid=%d for %s", tid, filePath)

	return t, nil
}

// CreateRx creates a receiving-side transaction. The tid is required: it was
// chosen by the remote peer and carried in INIT_TRANS. numFragments may be
// negative when not yet known. An existing transaction on the tid is
// overwritten with a warning.
func (m *Manager) CreateRx(tid uint8, filePath string, numFragments int) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rx[tid]; exists {
		m.log.Warn("overwriting existing RX transaction with tid=%d", tid)
	} else if len(m.rx) >= MaxTransactions {
		return nil, fmt.Errorf("%w: %d RX transactions active", errs.ErrManagerFull, len(m.rx))
	}

	t, err := NewRxTransaction(m.cdc, tid, filePath, numFragments)
	if err != nil {
		return nil, err
	}
	t.SetLogger(m.log)
	m.rx[tid] = t
	m.log.Debug("created RX transaction with tid=%d for %s", tid, filePath)

	return t, nil
}

func (m *Manager) freeTid() (uint8, bool) {
	for tid := uint8(0); tid < MaxTransactions; tid++ {
		if _, used := m.tx[tid]; !used {
			return tid, true
		}
	}

	return 0, false
}

// GetTx returns the sending-side transaction with the given tid.
func (m *Manager) GetTx(tid uint8) (*Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tx[tid]

	return t, ok
}

// GetRx returns the receiving-side transaction with the given tid.
func (m *Manager) GetRx(tid uint8) (*Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rx[tid]

	return t, ok
}

// Get searches both directions, TX first.
func (m *Manager) Get(tid uint8) (*Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.tx[tid]; ok {
		return t, true
	}
	t, ok := m.rx[tid]

	return t, ok
}

// Delete removes the transaction with the given tid from the selected
// direction. Returns true if something was deleted.
func (m *Manager) Delete(tid uint8, isTx bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := m.rx
	if isTx {
		target = m.tx
	}
	if _, ok := target[tid]; !ok {
		return false
	}
	delete(target, tid)
	m.log.Debug("deleted %s transaction with tid=%d", direction(isTx), tid)

	return true
}

// TxTransactions returns all sending-side transactions in tid order.
func (m *Manager) TxTransactions() []*Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	return sortedByTid(m.tx)
}

// RxTransactions returns all receiving-side transactions in tid order.
func (m *Manager) RxTransactions() []*Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	return sortedByTid(m.rx)
}

// AllTransactions returns every active transaction, TX first, each in tid
// order.
func (m *Manager) AllTransactions() []*Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append(sortedByTid(m.tx), sortedByTid(m.rx)...)
}

func sortedByTid(transactions map[uint8]*Transaction) []*Transaction {
	all := make([]*Transaction, 0, len(transactions))
	for _, t := range transactions {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Tid() < all[j].Tid() })

	return all
}

// TransactionsByState returns every transaction currently in the given
// state, TX first.
func (m *Manager) TransactionsByState(state State) []*Transaction {
	var matched []*Transaction
	for _, t := range m.AllTransactions() {
		if t.State() == state {
			matched = append(matched, t)
		}
	}

	return matched
}

// ActiveCount returns the number of transactions in both directions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.tx) + len(m.rx)
}

// IsFull reports whether the selected direction is at its eight-transaction
// cap.
func (m *Manager) IsFull(isTx bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isTx {
		return len(m.tx) >= MaxTransactions
	}

	return len(m.rx) >= MaxTransactions
}

// ClearFailed deletes every FAILED transaction and returns how many were
// removed.
func (m *Manager) ClearFailed() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cleared := 0
	for tid, t := range m.tx {
		if t.State() == StateFailed {
			delete(m.tx, tid)
			cleared++
		}
	}
	for tid, t := range m.rx {
		if t.State() == StateFailed {
			delete(m.rx, tid)
			cleared++
		}
	}

	return cleared
}

// Stats summarises the manager's population.
type Stats struct {
	Total   int
	TxCount int
	RxCount int
	ByState map[string]int
}

// GetStats returns counts of active transactions, total, per direction and
// per state. States with no transactions are omitted.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{
		TxCount: len(m.tx),
		RxCount: len(m.rx),
		ByState: make(map[string]int),
	}
	stats.Total = stats.TxCount + stats.RxCount

	for _, t := range m.tx {
		stats.ByState[t.State().String()]++
	}
	for _, t := range m.rx {
		stats.ByState[t.State().String()]++
	}

	return stats
}

func (m *Manager) String() string {
	stats := m.GetStats()

	return fmt.Sprintf("Manager(total=%d, tx=%d, rx=%d, by_state=%v)",
		stats.Total, stats.TxCount, stats.RxCount, stats.ByState)
}

func direction(isTx bool) string {
	if isTx {
		return "TX"
	}

	return "RX"
}
