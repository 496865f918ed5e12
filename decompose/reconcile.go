package decompose

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/globemesh/types"
	"github.com/notargets/globemesh/utils"
)

// boundaryMessage is what one slice tells a neighbor about their common nodes.
type boundaryMessage struct {
	From, To  int
	BuildID   uuid.UUID
	Keys      []types.NodeKey
	Positions []r3.Vec
	Local     []int
	Faces     []faceMessage
	Corners   []SharedCorner
}

type faceMessage struct {
	Side, NeighborSide types.Side
	Keys               []types.NodeKey
}

func (s *Slice) messageTo(to int) *boundaryMessage {
	b := s.Neighbors[to]
	msg := &boundaryMessage{
		From:      s.ID,
		To:        to,
		BuildID:   s.BuildID,
		Keys:      make([]types.NodeKey, len(b.Nodes)),
		Positions: make([]r3.Vec, len(b.Nodes)),
		Local:     append([]int(nil), b.Nodes...),
	}
	for i, n := range b.Nodes {
		msg.Keys[i], msg.Positions[i] = s.Keys[n], s.Coords[n]
	}
	for _, f := range s.Faces {
		if f.Neighbor != to {
			continue
		}
		fm := faceMessage{Side: f.Side, NeighborSide: f.NeighborSide}
		for _, n := range f.Nodes {
			fm.Keys = append(fm.Keys, s.Keys[n])
		}
		msg.Faces = append(msg.Faces, fm)
	}
	for _, c := range s.Corners {
		if contains(c.Ring, to) {
			msg.Corners = append(msg.Corners, c)
		}
	}
	return msg
}

/*
Reconcile checks that every pair of slices agrees on what they share. Each
slice posts one message per neighbor through a MailBox, all slices deliver,
then each slice verifies what it received:

	build id
	node keys and positions of the shared node list, in order
	face node lists
	corner rings
	one message from every neighbor and none from anyone else

Every disagreement is reported. Slices are marked finalized only when there
are none.
*/
func (d *Decomposer) Reconcile(ctx context.Context, all []*Slice) (err error) {
	np := len(all)
	for id, s := range all {
		if s == nil || s.ID != id {
			return fmt.Errorf("slice %d is missing or out of order", id)
		}
	}
	mb := utils.NewMailBox[*boundaryMessage](np)
	pm := utils.NewPartitionMap(min(np, maxWorkers()), np)

	// Post and deliver, then wait for everyone before reading
	g, gctx := errgroup.WithContext(ctx)
	for bn := 0; bn < pm.ParallelDegree; bn++ {
		kMin, kMax := pm.GetBucketRange(bn)
		g.Go(func() error {
			for id := kMin; id < kMax; id++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				s := all[id]
				for _, to := range s.NeighborIDs() {
					if to < 0 || to >= np {
						return types.NewTopologyError(id, to, "nodes", "neighbor outside the slice set")
					}
					mb.PostMessage(id, to, s.messageTo(to))
				}
				mb.DeliverMyMessages(id)
			}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return
	}

	errs := make([]error, np)
	g, gctx = errgroup.WithContext(ctx)
	for bn := 0; bn < pm.ParallelDegree; bn++ {
		kMin, kMax := pm.GetBucketRange(bn)
		g.Go(func() error {
			for id := kMin; id < kMax; id++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				mb.ReceiveMyMessages(id)
				errs[id] = d.verify(all[id], mb.Messages(id))
				mb.ClearMyMessages(id)
			}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return
	}
	if err = multierr.Combine(errs...); err != nil {
		d.logger.Warn("slice boundaries disagree", zap.Int("errors", len(multierr.Errors(err))))
		return
	}
	for _, s := range all {
		s.Finalized = true
	}
	return
}

func (d *Decomposer) verify(s *Slice, msgs []*boundaryMessage) (err error) {
	received := make(map[int]bool)
	for _, msg := range msgs {
		received[msg.From] = true
		err = multierr.Append(err, d.verifyMessage(s, msg))
	}
	for _, id := range s.NeighborIDs() {
		if !received[id] {
			err = multierr.Append(err, types.NewTopologyError(s.ID, id, "nodes", "no boundary message received"))
		}
	}
	return
}

func (d *Decomposer) verifyMessage(s *Slice, msg *boundaryMessage) (err error) {
	fail := func(boundary, format string, args ...any) {
		err = multierr.Append(err, types.NewTopologyError(s.ID, msg.From, boundary, format, args...))
	}
	if msg.BuildID != s.BuildID {
		fail("build", "build %s does not match %s", msg.BuildID, s.BuildID)
		return
	}
	b, ok := s.Neighbors[msg.From]
	if !ok {
		fail("nodes", "unexpected message for %d nodes", len(msg.Keys))
		return
	}
	if len(b.Nodes) != len(msg.Keys) {
		fail("nodes", "%d shared nodes here, %d on the neighbor", len(b.Nodes), len(msg.Keys))
		return
	}
	for i, n := range b.Nodes {
		if s.Keys[n] != msg.Keys[i] {
			fail("nodes", "shared node %d is %v here, %v on the neighbor", i, s.Keys[n], msg.Keys[i])
			return
		}
		if dist := r3.Norm(r3.Sub(s.Coords[n], msg.Positions[i])); dist > d.tolerance {
			fail("nodes", "node %v is %g m apart", s.Keys[n], dist)
		}
	}
	b.NeighborNodes = append(b.NeighborNodes[:0], msg.Local...)

	for _, f := range s.Faces {
		if f.Neighbor != msg.From {
			continue
		}
		var fm *faceMessage
		for i := range msg.Faces {
			if msg.Faces[i].Side == f.NeighborSide && msg.Faces[i].NeighborSide == f.Side {
				fm = &msg.Faces[i]
			}
		}
		if fm == nil {
			fail(f.Side.String(), "neighbor does not face back through %s", f.NeighborSide)
			continue
		}
		if len(fm.Keys) != len(f.Nodes) {
			fail(f.Side.String(), "%d face nodes here, %d on the neighbor", len(f.Nodes), len(fm.Keys))
			continue
		}
		for i, n := range f.Nodes {
			if s.Keys[n] != fm.Keys[i] {
				fail(f.Side.String(), "face node %d is %v here, %v on the neighbor", i, s.Keys[n], fm.Keys[i])
				break
			}
		}
	}

	for _, c := range s.Corners {
		if !contains(c.Ring, msg.From) {
			continue
		}
		var match *SharedCorner
		for i := range msg.Corners {
			if msg.Corners[i].Key == c.Key {
				match = &msg.Corners[i]
			}
		}
		switch {
		case match == nil:
			fail(c.Corner.String(), "neighbor has no corner at %v", c.Key)
		case !slices.Equal(match.Ring, c.Ring):
			fail(c.Corner.String(), "ring %v here, %v on the neighbor", c.Ring, match.Ring)
		}
	}
	return
}

// TopologyErrors unpacks the consistency errors Reconcile reports.
func TopologyErrors(err error) (list []*types.TopologyConsistencyError) {
	for _, e := range multierr.Errors(err) {
		var te *types.TopologyConsistencyError
		if errors.As(e, &te) {
			list = append(list, te)
		}
	}
	return
}
