package transcode

import (
	"mediaflow/internal/core/bus"
	"mediaflow/internal/graph"
)

// profileTarget names one output stream a pipeline republishes frames onto.
type profileTarget struct {
	name string
	out  *bus.Stream
}

// pipelineError is a plain sentinel-free error type for wiring failures;
// there is nothing a caller would branch on beyond the message.
type pipelineError string

func (e pipelineError) Error() string { return string(e) }

func errConnectFailed(from, to string) error {
	return pipelineError("transcode: failed to connect " + from + " -> " + to)
}

// buildPipeline wires one decode-once/encode-many graph for a group of
// profiles sharing a source stream: an ingest Head reads tags off the
// source's bus.Subscriber, a MASTER decode filter drives the first profile
// directly and hands its frame snapshot to one SLAVE per remaining profile,
// and each profile's own Tail republishes onto its output bus.Stream.
// Grounded on original_source/src/testTranscoder.cpp's one-decoder,
// many-encoder-profiles topology (see SPEC_FULL.md's supplemented features).
func buildPipeline(pm *graph.PipelineManager, src *bus.Stream, profiles []profileTarget) (*bus.Subscriber, uint64, error) {
	sub, subID := src.AttachSubscriber(256, bus.BackpressureDropOldest)

	ingestID := pm.NewFilterID()
	ingest := graph.NewBaseFilter(ingestID, graph.RoleMaster, graph.NewHeadShape(1, &ingestHead{sub: sub}), false, nil)
	pm.RegisterFilter(ingest)

	decodeID := pm.NewFilterID()
	decode := graph.NewBaseFilter(decodeID, graph.RoleMaster, graph.NewOneToOneShape(decodeTransform{}), false, pm.LookupFilter)
	pm.RegisterFilter(decode)

	if !ingest.ConnectOneToOne(decode) {
		return nil, 0, errConnectFailed("ingest", "decode")
	}

	firstSinkID := pm.NewFilterID()
	firstSink := graph.NewBaseFilter(firstSinkID, graph.RoleMaster, graph.NewTailShape(1, &publishTail{out: profiles[0].out}), false, nil)
	pm.RegisterFilter(firstSink)
	if !decode.ConnectOneToOne(firstSink) {
		return nil, 0, errConnectFailed("decode", profiles[0].name)
	}

	// sinkIDs collects every Tail filter that needs its own worker tick:
	// firstSink plus one per remaining profile. Slave filters are not
	// included here — they are ticked synchronously from decode's own
	// master tick (BaseFilter.runSlaves), never from a Worker's run loop,
	// so that a slave is never ticked concurrently with itself.
	sinkIDs := []graph.FilterID{firstSinkID}

	for _, prof := range profiles[1:] {
		slaveID := pm.NewFilterID()
		slave := graph.NewBaseFilter(slaveID, graph.RoleSlave, graph.NewOneToOneShape(&profileEncode{profileName: prof.name}), false, nil)
		pm.RegisterFilter(slave)

		sinkID := pm.NewFilterID()
		sink := graph.NewBaseFilter(sinkID, graph.RoleMaster, graph.NewTailShape(1, &publishTail{out: prof.out}), false, nil)
		pm.RegisterFilter(sink)

		if !slave.ConnectOneToOne(sink) {
			return nil, 0, errConnectFailed("slave", prof.name)
		}
		if !decode.AddSlave(slave) {
			return nil, 0, errConnectFailed("master", "slave:"+prof.name)
		}
		sinkIDs = append(sinkIDs, sinkID)
	}

	workerIDs := append([]graph.FilterID{ingestID, decodeID}, sinkIDs...)
	pm.NewWorker(workerIDs...)
	pm.Start()

	return sub, subID, nil
}
