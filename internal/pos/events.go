package pos

// EventKind classifies engine notifications.
type EventKind string

const (
	EventCartChanged    EventKind = "cart.changed"
	EventSaleCommitted  EventKind = "sale.committed"
	EventCatalogChanged EventKind = "catalog.changed"
	EventSaleDeleted    EventKind = "sale.deleted"
	EventRefused        EventKind = "operation.refused"
)

// Op names the operator action behind an event.
type Op string

const (
	OpAddOne       Op = "add"
	OpIncrementOne Op = "increment"
	OpDecrementOne Op = "decrement"
	OpRemoveLine   Op = "remove"
	OpResetCart    Op = "reset"
	OpCheckout     Op = "checkout"
	OpUpsertItem   Op = "upsert_item"
	OpRemoveItem   Op = "remove_item"
	OpResetCatalog Op = "reset_catalog"
	OpDeleteSale   Op = "delete_sale"
)

// Event is delivered to subscribers after a mutation has been persisted, or
// after an operation was refused (Kind == EventRefused, Err set).
type Event struct {
	Kind     EventKind
	Op       Op
	ItemID   string
	Sale     *Sale
	Err      error
	Snapshot Snapshot
}

// Listener receives engine events. It runs on the goroutine that performed
// the operation, outside the engine lock.
type Listener func(Event)
