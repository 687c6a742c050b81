// Package dispatch demultiplexes inbound stream frames.
//
// Every frame enters through Dispatcher.Dispatch, which decodes the
// channel-tagged envelope once into a typed message and routes it: book
// frames mutate the owning Book and emit a full materialized snapshot
// record, trade frames emit a trade record, and lifecycle frames drive the
// tracker and outbound unsubscribe commands. Malformed frames are logged
// and dropped; a single bad frame never halts collection for other markets.
//
// Frames are processed strictly sequentially in arrival order, which
// satisfies the per-ticker FIFO requirement over one multiplexed stream.
package dispatch
