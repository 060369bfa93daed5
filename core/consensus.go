package core

// SynnergyConsensus – GhostDAG: blue/red k-cluster classification over a
// multi-parent block DAG, replacing the teacher's PoH sub-block + PoS
// endorsement + PoW main-block sealing pipeline. The collaborator seams
// (txPool/networkAdapter/securityAdapter/authorityAdapter) and the
// ticker-driven goroutine loop survive unchanged; only the sealing
// algorithm and the state it tracks change.
//
// Key invariants (§4.3):
//   - A block's mergeset is classified blue/red relative to its selected
//     parent's blue set; a candidate is blue iff no blue block's anticone
//     grows past k blues once the candidate is added.
//   - blue_score/blue_work accumulate from the selected parent plus the
//     new blues each block contributes.
//   - Tip selection picks the blue tip with greatest (blue_score,
//     blue_work, hash) lexicographically.
//   - Canonical tx order is the traversal of the selected-parent chain
//     with each block's mergeset interleaved in topological+hash order
//     (blue and red mergeset blocks alike, without blue-first reordering).
//   - Finality: once virtual_selected_tip.blue_score - block.blue_score
//     >= finality_depth, that block's past is no longer reorgable.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

//---------------------------------------------------------------------
// Wire-up interfaces (keeps core independent of concrete impls)
//---------------------------------------------------------------------

type txPool interface {
	Pick(max int) [][]byte
}

type networkAdapter interface {
	Broadcast(topic string, data interface{}) error
	Subscribe(topic string) (<-chan InboundMsg, func())
}

type securityAdapter interface {
	Sign(privRole string, data []byte) ([]byte, error)
	Verify(pubKey, sig, data []byte) bool
}

type authorityAdapter interface {
	ValidatorPubKey(role string) []byte
	StakeOf(pubKey []byte) uint64
	LoanPoolAddress() Address
	ListAuthorities(activeOnly bool) ([]AuthorityNode, error)
}

// AuthorityNode is a consensus-eligible proposer known to the authority set.
type AuthorityNode struct {
	PubKey []byte
	Active bool
	Stake  uint64
}

//---------------------------------------------------------------------
// Errors (§4.3 failure modes)
//---------------------------------------------------------------------

var (
	ErrUnknownParent         = errors.New("consensus: unknown parent, block queued as orphan")
	ErrDuplicateBlock        = errors.New("consensus: duplicate block")
	ErrInvalidProposerSig    = errors.New("consensus: invalid proposer signature")
	ErrTimestampOutOfRange   = errors.New("consensus: timestamp out of range")
	ErrGasLimitViolation     = errors.New("consensus: gas limit violation")
	ErrRootMismatch          = errors.New("consensus: state/receipt/tx root mismatch")
)

//---------------------------------------------------------------------
// Per-block DAG metadata
//---------------------------------------------------------------------

// blockInfo is the classification state GhostDAG tracks for every block
// that has been accepted into the DAG (blue or red).
type blockInfo struct {
	header    *BlockHeader
	hash      Hash
	blueScore uint64
	blueWork  *big.Int
	blueSet   map[Hash]struct{} // this block's own blue set (includes ancestors)
	isBlue    bool              // whether THIS block is blue relative to its parent
}

// ConsensusWeights and WeightConfig retain the teacher's adaptive block-
// interval weighting knobs (unrelated to blue/red classification; they tune
// how aggressively block_time_ms reacts to demand/stake pressure).
type ConsensusWeights struct {
	PoW float64
	PoS float64
	PoH float64
}

type WeightConfig struct {
	Alpha, Beta, Gamma float64
	DMax, SMax         float64
}

//---------------------------------------------------------------------
// SynnergyConsensus
//---------------------------------------------------------------------

type SynnergyConsensus struct {
	mu sync.RWMutex

	logger *logrus.Logger
	ledger *Ledger
	p2p    networkAdapter
	crypto securityAdapter
	pool   txPool
	auth   authorityAdapter

	k              int    // k-cluster size (max anticone blues)
	maxParents     int    // max merge parents per block
	finalityDepth  uint64 // blue_score depth before pruning
	blockTimeMS    int64
	pruningWindow  uint64 // blue_score span of retained history behind finality

	genesisHash Hash
	blocks      map[Hash]*blockInfo
	tips        map[Hash]struct{}
	finalized   Hash // highest block whose past is pruned out of the reorg set

	orphans map[Hash][]*Block // keyed by missing parent hash

	weightCfg WeightConfig
	weights   ConsensusWeights
}

// ConsensusParams carries the genesis-configured GhostDAG tunables (§4.8).
type ConsensusParams struct {
	K             int
	MaxParents    int
	FinalityDepth uint64
	BlockTimeMS   int64
	PruningWindow uint64
}

func NewConsensus(
	lg *logrus.Logger,
	led *Ledger,
	p2p networkAdapter,
	crypt securityAdapter,
	pool txPool,
	auth authorityAdapter,
	params ConsensusParams,
	genesis *Block,
) (*SynnergyConsensus, error) {
	if params.K <= 0 {
		return nil, fmt.Errorf("invalid k-cluster size %d", params.K)
	}
	if genesis == nil {
		return nil, errors.New("consensus: genesis block required")
	}
	genesisHash, err := genesis.Hash()
	if err != nil {
		return nil, fmt.Errorf("hash genesis: %w", err)
	}

	sc := &SynnergyConsensus{
		logger:        lg,
		ledger:        led,
		p2p:           p2p,
		crypto:        crypt,
		pool:          pool,
		auth:          auth,
		k:             params.K,
		maxParents:    params.MaxParents,
		finalityDepth: params.FinalityDepth,
		blockTimeMS:   params.BlockTimeMS,
		pruningWindow: params.PruningWindow,
		genesisHash:   genesisHash,
		blocks:        make(map[Hash]*blockInfo),
		tips:          make(map[Hash]struct{}),
		orphans:       make(map[Hash][]*Block),
	}
	sc.blocks[genesisHash] = &blockInfo{
		header:    genesis.Header,
		hash:      genesisHash,
		blueScore: 0,
		blueWork:  new(big.Int),
		blueSet:   map[Hash]struct{}{genesisHash: {}},
		isBlue:    true,
	}
	sc.tips[genesisHash] = struct{}{}
	sc.finalized = genesisHash
	return sc, nil
}

//---------------------------------------------------------------------
// Public service API – Start/Stop
//---------------------------------------------------------------------

func (sc *SynnergyConsensus) Start(ctx context.Context) {
	sub, unsub := sc.p2p.Subscribe("block")
	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-sub:
				sc.handleInboundBlock(m)
			}
		}
	}()
	sc.logger.Info("ghostdag consensus started")
}

func (m *InboundMsg) Decode(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}

func (sc *SynnergyConsensus) handleInboundBlock(m InboundMsg) {
	var blk Block
	if err := m.Decode(&blk); err != nil {
		sc.logger.WithError(err).Warn("consensus: malformed inbound block")
		return
	}
	if err := sc.ProcessBlock(&blk); err != nil && !errors.Is(err, ErrUnknownParent) {
		sc.logger.WithError(err).Warn("consensus: rejected inbound block")
	}
}

//---------------------------------------------------------------------
// ProcessBlock: Orphan -> Accepted -> classification -> tip-set update
//---------------------------------------------------------------------

// ProcessBlock validates a block's parents are known, classifies it
// blue/red, updates the tip set, and advances finality. It does not
// execute the block's transactions; callers invoke the executor
// separately and are expected to have already verified state/receipt/tx
// roots before calling ProcessBlock, or to reject on ErrRootMismatch
// themselves.
func (sc *SynnergyConsensus) ProcessBlock(b *Block) error {
	hash, err := b.Hash()
	if err != nil {
		return fmt.Errorf("hash block: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if _, exists := sc.blocks[hash]; exists {
		return ErrDuplicateBlock
	}

	parents := b.Parents()
	for _, p := range parents {
		if _, ok := sc.blocks[p]; !ok {
			sc.orphans[p] = append(sc.orphans[p], b)
			return ErrUnknownParent
		}
	}
	if len(parents)-1 > sc.maxParents-1 && sc.maxParents > 0 {
		return ErrGasLimitViolation
	}

	info := sc.classify(b, hash)
	sc.blocks[hash] = info
	delete(sc.tips, b.Header.SelectedParent)
	for _, mp := range b.Header.MergeParents {
		delete(sc.tips, mp)
	}
	sc.tips[hash] = struct{}{}

	sc.advanceFinality()
	sc.releaseOrphans(hash)
	return nil
}

func (sc *SynnergyConsensus) releaseOrphans(parent Hash) {
	pending := sc.orphans[parent]
	delete(sc.orphans, parent)
	for _, b := range pending {
		go func(blk *Block) {
			if err := sc.ProcessBlock(blk); err != nil && !errors.Is(err, ErrUnknownParent) {
				sc.logger.WithError(err).Debug("consensus: orphan re-processing failed")
			}
		}(b)
	}
}

//---------------------------------------------------------------------
// Classification: mergeset, blue/red k-cluster, blue_score/blue_work
//---------------------------------------------------------------------

// classify implements §4.3 steps 1-4. It must be called with sc.mu held.
func (sc *SynnergyConsensus) classify(b *Block, hash Hash) *blockInfo {
	selectedParent := sc.blocks[b.Header.SelectedParent]
	mergeset := sc.computeMergeset(b)

	blueSet := make(map[Hash]struct{}, len(selectedParent.blueSet)+len(mergeset)+1)
	for h := range selectedParent.blueSet {
		blueSet[h] = struct{}{}
	}

	newBlues := 0
	for _, candidate := range mergeset {
		if sc.wouldStayWithinKCluster(candidate, blueSet) {
			blueSet[candidate] = struct{}{}
			newBlues++
		}
		// else: candidate is classified red. It is still stored (reachable
		// via sc.blocks) but excluded from blueSet and future blue_score.
	}

	// Register the header provisionally so pastOf(hash) reaches the block's
	// parents; ProcessBlock replaces this entry with the final blockInfo.
	sc.blocks[hash] = &blockInfo{header: b.Header, hash: hash}
	selfBlue := sc.wouldStayWithinKCluster(hash, blueSet)
	if selfBlue {
		blueSet[hash] = struct{}{}
		newBlues++
	}

	blueWork := new(big.Int).Add(selectedParent.blueWork, big.NewInt(int64(newBlues)))
	return &blockInfo{
		header:    b.Header,
		hash:      hash,
		blueScore: selectedParent.blueScore + uint64(newBlues),
		blueWork:  blueWork,
		blueSet:   blueSet,
		isBlue:    selfBlue,
	}
}

// computeMergeset returns the blocks reachable from b's merge parents but
// not already in the selected parent's past, in deterministic topological
// order (ancestors before descendants, hash-tiebreak within a generation).
// Must be called with sc.mu held.
func (sc *SynnergyConsensus) computeMergeset(b *Block) []Hash {
	selectedParent := b.Header.SelectedParent
	spPast := sc.pastOf(selectedParent)

	visited := map[Hash]struct{}{}
	var frontier []Hash
	for _, mp := range b.Header.MergeParents {
		if _, ok := spPast[mp]; !ok {
			frontier = append(frontier, mp)
		}
	}

	var mergeset []Hash
	for len(frontier) > 0 {
		sort.Slice(frontier, func(i, j int) bool { return bytesLess(frontier[i][:], frontier[j][:]) })
		next := frontier[0]
		frontier = frontier[1:]
		if _, seen := visited[next]; seen {
			continue
		}
		if _, inPast := spPast[next]; inPast {
			continue
		}
		visited[next] = struct{}{}
		mergeset = append(mergeset, next)

		if info, ok := sc.blocks[next]; ok && info.header != nil {
			parents := append([]Hash{info.header.SelectedParent}, info.header.MergeParents...)
			for _, p := range parents {
				if _, seen := visited[p]; !seen {
					if _, inPast := spPast[p]; !inPast {
						frontier = append(frontier, p)
					}
				}
			}
		}
	}

	sort.Slice(mergeset, func(i, j int) bool {
		di, dj := sc.depthFromTip(mergeset[i]), sc.depthFromTip(mergeset[j])
		if di != dj {
			return di < dj // ancestors (lower blue_score) first
		}
		return bytesLess(mergeset[i][:], mergeset[j][:])
	})
	return mergeset
}

// pastOf returns every block hash reachable by following selected-parent and
// merge-parent edges backward from h, including h itself.
func (sc *SynnergyConsensus) pastOf(h Hash) map[Hash]struct{} {
	out := map[Hash]struct{}{}
	stack := []Hash{h}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := out[cur]; ok {
			continue
		}
		out[cur] = struct{}{}
		info, ok := sc.blocks[cur]
		if !ok || info.header == nil {
			continue
		}
		if !info.header.SelectedParent.IsZero() {
			stack = append(stack, info.header.SelectedParent)
		}
		stack = append(stack, info.header.MergeParents...)
	}
	return out
}

// depthFromTip returns h's recorded blue_score (0 for unknown blocks), used
// as the generation key when ordering a mergeset.
func (sc *SynnergyConsensus) depthFromTip(h Hash) uint64 {
	if info, ok := sc.blocks[h]; ok {
		return info.blueScore
	}
	return 0
}

// wouldStayWithinKCluster reports whether candidate's anticone within
// blueSet holds at most k blues (§4.3 step 2). The anticone is counted as
// the blues in blueSet that are not in candidate's past and do not have
// candidate in their past, both computed with pastOf. Only the candidate's
// own anticone is counted; the anticones of blocks already in blueSet are
// not re-checked.
func (sc *SynnergyConsensus) wouldStayWithinKCluster(candidate Hash, blueSet map[Hash]struct{}) bool {
	candidatePast := sc.pastOf(candidate)
	anticoneSize := 0
	for blue := range blueSet {
		if blue == candidate {
			continue
		}
		if _, inPast := candidatePast[blue]; inPast {
			continue
		}
		bluePast := sc.pastOf(blue)
		if _, inFuture := bluePast[candidate]; inFuture {
			continue
		}
		anticoneSize++
		if anticoneSize > sc.k {
			return false
		}
	}
	return true
}

//---------------------------------------------------------------------
// Tip / virtual selection (§4.3)
//---------------------------------------------------------------------

// SelectTip returns the blue tip with greatest (blue_score, blue_work,
// hash) lexicographically — the parent any honest sequencer proposes on.
func (sc *SynnergyConsensus) SelectTip() (Hash, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.selectTipLocked()
}

func (sc *SynnergyConsensus) selectTipLocked() (Hash, error) {
	var best Hash
	var bestInfo *blockInfo
	for h := range sc.tips {
		info := sc.blocks[h]
		if info == nil || !info.isBlue {
			continue
		}
		if bestInfo == nil || tipLess(bestInfo, info) {
			best, bestInfo = h, info
		}
	}
	if bestInfo == nil {
		return sc.genesisHash, nil
	}
	return best, nil
}

func tipLess(a, b *blockInfo) bool {
	if a.blueScore != b.blueScore {
		return a.blueScore < b.blueScore
	}
	if cmp := a.blueWork.Cmp(b.blueWork); cmp != 0 {
		return cmp < 0
	}
	return bytesLess(a.hash[:], b.hash[:])
}

func bytesLess(a, b []byte) bool {
	for i := range a {
		if i >= len(b) {
			return false
		}
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// SelectedParentChain walks selected-parent edges from the virtual
// selected tip back to genesis.
func (sc *SynnergyConsensus) SelectedParentChain() ([]Hash, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	tip, err := sc.selectTipLocked()
	if err != nil {
		return nil, err
	}
	var chain []Hash
	cur := tip
	for {
		chain = append(chain, cur)
		if cur == sc.genesisHash {
			break
		}
		info, ok := sc.blocks[cur]
		if !ok || info.header == nil {
			break
		}
		cur = info.header.SelectedParent
	}
	return chain, nil
}

// CanonicalOrder returns the canonical block order of the DAG (§4.3), which
// fixes the transaction order: the selected-parent chain from genesis to
// the virtual tip, with each block's mergeset interleaved in topological+
// hash order immediately before that block. Mergeset blocks are not
// reordered by their blue/red classification.
func (sc *SynnergyConsensus) CanonicalOrder() ([]Hash, error) {
	chain, err := sc.SelectedParentChain()
	if err != nil {
		return nil, err
	}
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	var order []Hash
	for i := len(chain) - 1; i >= 0; i-- {
		h := chain[i]
		info := sc.blocks[h]
		if info != nil && info.header != nil && !info.header.SelectedParent.IsZero() {
			order = append(order, sc.computeMergeset(&Block{Header: info.header})...)
		}
		order = append(order, h)
	}
	return order, nil
}

//---------------------------------------------------------------------
// Finality (§4.3)
//---------------------------------------------------------------------

// advanceFinality marks the block finalityDepth behind the virtual
// selected tip as finalized; its past is no longer reorgable. Must be
// called with sc.mu held.
func (sc *SynnergyConsensus) advanceFinality() {
	tip, err := sc.selectTipLocked()
	if err != nil {
		return
	}
	tipInfo := sc.blocks[tip]
	if tipInfo == nil || tipInfo.blueScore < sc.finalityDepth {
		return
	}
	target := tipInfo.blueScore - sc.finalityDepth
	cur := tip
	for {
		info := sc.blocks[cur]
		if info == nil || info.header == nil {
			return
		}
		if info.blueScore <= target {
			sc.finalized = cur
			return
		}
		cur = info.header.SelectedParent
	}
}

// IsFinal reports whether hash's past is no longer subject to reorg.
func (sc *SynnergyConsensus) IsFinal(hash Hash) bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	finalizedInfo, ok := sc.blocks[sc.finalized]
	if !ok {
		return false
	}
	info, ok := sc.blocks[hash]
	if !ok {
		return false
	}
	return info.blueScore <= finalizedInfo.blueScore
}

//---------------------------------------------------------------------
// Proposer-facing accessors used by the sequencer (§4.5)
//---------------------------------------------------------------------

// Tips returns every current blue-or-red DAG tip.
func (sc *SynnergyConsensus) Tips() []Hash {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	out := make([]Hash, 0, len(sc.tips))
	for h := range sc.tips {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return bytesLess(out[i][:], out[j][:]) })
	return out
}

// BlueScoreOf returns the recorded blue_score for a known block.
func (sc *SynnergyConsensus) BlueScoreOf(h Hash) (uint64, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	info, ok := sc.blocks[h]
	if !ok {
		return 0, false
	}
	return info.blueScore, true
}

// BlueWorkOf returns the recorded blue_work for a known block, for a
// sequencer populating a provisional header before the block it is
// building has itself been classified.
func (sc *SynnergyConsensus) BlueWorkOf(h Hash) (*big.Int, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	info, ok := sc.blocks[h]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(info.blueWork), true
}

//---------------------------------------------------------------------
// Adaptive block-interval weighting (kept from the teacher; unrelated to
// blue/red classification — tunes how block_time_ms reacts to demand/stake)
//---------------------------------------------------------------------

func (sc *SynnergyConsensus) SetWeightConfig(cfg WeightConfig) {
	sc.mu.Lock()
	sc.weightCfg = cfg
	sc.mu.Unlock()
}

func (sc *SynnergyConsensus) WeightConfig() WeightConfig {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.weightCfg
}

// Params returns the genesis-configured GhostDAG tunables, for RPC/status
// surfaces that report node configuration (node_getDagStats).
func (sc *SynnergyConsensus) Params() ConsensusParams {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return ConsensusParams{
		K:             sc.k,
		MaxParents:    sc.maxParents,
		FinalityDepth: sc.finalityDepth,
		BlockTimeMS:   sc.blockTimeMS,
		PruningWindow: sc.pruningWindow,
	}
}

// CalculateWeights computes the dynamic consensus weight distribution based
// on current network demand and stake concentration.
func (sc *SynnergyConsensus) CalculateWeights(demand, stake float64) ConsensusWeights {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	cfg := sc.weightCfg
	if cfg.DMax == 0 {
		cfg.DMax = 1
	}
	if cfg.SMax == 0 {
		cfg.SMax = 1
	}

	adj := cfg.Gamma * ((demand / cfg.DMax) + (stake / cfg.SMax))
	pow := 0.40 + cfg.Alpha*adj
	pos := 0.30 + cfg.Beta*adj
	poh := 0.30 + (1-cfg.Alpha-cfg.Beta)*adj

	if pow < 0.075 {
		pow = 0.075
	}
	if pos < 0.075 {
		pos = 0.075
	}
	if poh < 0.075 {
		poh = 0.075
	}
	sum := pow + pos + poh
	pow /= sum
	pos /= sum
	poh /= sum

	sc.weights = ConsensusWeights{PoW: pow, PoS: pos, PoH: poh}
	return sc.weights
}

// ComputeThreshold returns the consensus switching threshold for the
// supplied network metrics using T = alpha*(D/D_max) + beta*(S/S_max).
func (sc *SynnergyConsensus) ComputeThreshold(demand, stake float64) float64 {
	sc.mu.RLock()
	cfg := sc.weightCfg
	sc.mu.RUnlock()
	if cfg.DMax == 0 {
		cfg.DMax = 1
	}
	if cfg.SMax == 0 {
		cfg.SMax = 1
	}
	return cfg.Alpha*(demand/cfg.DMax) + cfg.Beta*(stake/cfg.SMax)
}

//---------------------------------------------------------------------
// Validation helpers shared with the import/sync path (§4.3 failure modes)
//---------------------------------------------------------------------

// ValidateTimestamp rejects blocks whose timestamp strays too far from
// wall-clock (the proposer's clock, rounded to the block-time grid, is the
// only permitted non-determinism per §4.5).
func (sc *SynnergyConsensus) ValidateTimestamp(tsMS int64, now time.Time, maxDriftMS int64) error {
	drift := now.UnixMilli() - tsMS
	if drift < 0 {
		drift = -drift
	}
	if drift > maxDriftMS {
		return ErrTimestampOutOfRange
	}
	return nil
}

// ValidateProposerSignature verifies a block header's signature against the
// proposer's registered pubkey.
func (sc *SynnergyConsensus) ValidateProposerSignature(b *Block, pubKey []byte) error {
	signingHash, err := b.Header.SigningHash()
	if err != nil {
		return err
	}
	if !sc.crypto.Verify(pubKey, b.Header.Signature, signingHash[:]) {
		return ErrInvalidProposerSig
	}
	return nil
}
