package factory

import (
	"context"

	"pmxfactory/internal/channelstrip"
	"pmxfactory/internal/journal"
	"pmxfactory/internal/logging"
	"pmxfactory/internal/topology"
)

// assembleOutputStage builds the left and right basic strips, merges their
// gain outputs into a fresh cross-fader, and registers the stage only after
// both legs are wired. Failures are *AssemblyError values.
func (f *Factory) assembleOutputStage(ctx context.Context, entryID int64, name string) (topology.OutputStage, error) {
	fail := func(leg string, err error) (topology.OutputStage, error) {
		return topology.OutputStage{}, newAssemblyError(journal.KindOutputStage, name, leg, err)
	}

	if err := f.reserveStripIDs(2); err != nil {
		return fail("", err)
	}
	left, err := f.assembleChannelStrip(ctx, entryID, topology.LeftStageName, topology.KindBasic)
	if err != nil {
		return fail(topology.LeftStageName, err)
	}
	right, err := f.assembleChannelStrip(ctx, entryID, topology.RightStageName, topology.KindBasic)
	if err != nil {
		return fail(topology.RightStageName, err)
	}

	fader, err := f.assembler.Instantiate(ctx, topology.RoleCrossFader)
	if err != nil {
		return fail("", err)
	}
	if err := f.wiring.ConnectCrossFaderLeft(ctx, left.Plugins.Gain, fader); err != nil {
		return fail("", &channelstrip.StepError{Step: channelstrip.StepWiring, Role: topology.RoleCrossFader, Err: err})
	}
	if err := f.wiring.ConnectCrossFaderRight(ctx, right.Plugins.Gain, fader); err != nil {
		return fail("", &channelstrip.StepError{Step: channelstrip.StepWiring, Role: topology.RoleCrossFader, Err: err})
	}

	id, err := f.registry.RegisterOutputStage(ctx, name, left.ID, right.ID, fader.ID)
	if err != nil {
		return fail("", &channelstrip.StepError{Step: channelstrip.StepRegistration, Err: err})
	}
	stage := topology.OutputStage{
		ID:                  id,
		Name:                name,
		LeftChannelStripID:  left.ID,
		RightChannelStripID: right.ID,
		CrossFaderPluginID:  fader.ID,
	}
	if f.store != nil {
		if err := f.store.RecordOutputStage(ctx, entryID, stage); err != nil {
			logging.WarnWithContext(f.logger, "journal write failed", "journal_write_failed",
				logging.StageID(stage.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "stage missing from local listings"),
			)
		}
	}
	logging.WithContext(ctx, f.logger).Info("output stage registered",
		logging.StageID(stage.ID),
		logging.String(logging.FieldName, stage.Name),
		logging.Uint32("left_strip_id", left.ID),
		logging.Uint32("right_strip_id", right.ID),
	)
	return stage, nil
}
