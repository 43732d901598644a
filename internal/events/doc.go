// Package events is the status bus between background work and the
// presentation layer.
//
// Producers (the scanner's workers, the conversion pipeline, the resource
// monitor) call [Bus.Publish], which never blocks. When the queue is full
// the oldest event that does not end an operation is discarded and counted
// in [Bus.Dropped]; completion events are kept so a consumer always learns
// that a scan or a conversion run finished.
//
// There is one consumer. It calls [Bus.Pump], which drains at most
// MaxBatch events per tick and shortens its polling interval while the
// queue stays saturated:
//
//	go bus.Pump(ctx, events.DefaultPumpConfig(), func(batch []events.Event) {
//	    for _, e := range batch {
//	        switch e := e.(type) {
//	        case events.LogEvent:
//	            logs.Append(e)
//	        case events.StatusEvent:
//	            sess.SetStatus(e.Path, e.Status)
//	        }
//	    }
//	})
package events
