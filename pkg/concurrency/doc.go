/*
Package concurrency provides advanced concurrency primitives with observability.

Features:
  - SmartMutex / SmartRWMutex: slow (write) lock logging in DebugMode;
    SmartMutex also has a Monitor goroutine for deadlock detection
  - SafeGo / FanOut: panic-safe goroutine spawning and bounded fan-out

SmartRWMutex backs pkg/capture.Store's single coarse-grained lock guarding
its order/byID/byTopic indices. FanOut drives the concurrent per-entry
inserts in pkg/protocol's SendMessageBatch handling.
*/
package concurrency
