package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/ethpandaops/ephemeris/pkg/hydrator"
	"github.com/ethpandaops/ephemeris/pkg/segment"
	"github.com/ethpandaops/ephemeris/pkg/service"
	"github.com/ethpandaops/ephemeris/pkg/swe"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	segYear        int
	segBody        string
	segFrom        int
	segTo          int
	segBodies      []string
	segConcurrency int
)

// segmentsCmd represents the segments command group
//
//nolint:gochecknoglobals // Cobra commands are typically global
var segmentsCmd = &cobra.Command{
	Use:   "segments",
	Short: "Resolve and hydrate segment files",
	Long:  `Commands for inspecting which segment file a date needs and staging it locally.`,
}

//nolint:gochecknoglobals // Cobra commands are typically global
var segmentsResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Show the segment a year and body need",
	RunE:  runSegmentsResolve,
}

//nolint:gochecknoglobals // Cobra commands are typically global
var segmentsHydrateCmd = &cobra.Command{
	Use:   "hydrate [segment-id...]",
	Short: "Download and stage segments",
	Long: `Stages the given segment identifiers (e.g. seplm30 semom54), or the segment
for --year and --body when none are given.`,
	RunE: runSegmentsHydrate,
}

//nolint:gochecknoglobals // Cobra commands are typically global
var segmentsPrefetchCmd = &cobra.Command{
	Use:   "prefetch",
	Short: "Stage every segment covering a year range",
	RunE:  runSegmentsPrefetch,
}

//nolint:gochecknoglobals // Cobra commands are typically global
var segmentsManifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "List hydrated segments",
	RunE:  runSegmentsManifest,
}

func init() {
	rootCmd.AddCommand(segmentsCmd)
	segmentsCmd.AddCommand(segmentsResolveCmd)
	segmentsCmd.AddCommand(segmentsHydrateCmd)
	segmentsCmd.AddCommand(segmentsPrefetchCmd)
	segmentsCmd.AddCommand(segmentsManifestCmd)

	for _, c := range []*cobra.Command{segmentsResolveCmd, segmentsHydrateCmd} {
		c.Flags().IntVar(&segYear, "year", 0, "year, astronomical numbering")
		c.Flags().StringVar(&segBody, "body", "sun", "body name")
	}

	segmentsPrefetchCmd.Flags().IntVar(&segFrom, "from", -3000, "first year")
	segmentsPrefetchCmd.Flags().IntVar(&segTo, "to", 1799, "last year")
	segmentsPrefetchCmd.Flags().StringSliceVar(&segBodies, "bodies", nil, "bodies to prefetch (default all)")
	segmentsPrefetchCmd.Flags().IntVar(&segConcurrency, "concurrency", 4, "parallel downloads")
}

// segmentsCore builds the hydration stack without loading the engine.
func segmentsCore(cmd *cobra.Command) (*service.Core, error) {
	config, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return service.NewCore(logger, config, nil)
}

func runSegmentsResolve(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	body, err := swe.ParseBody(segBody)
	if err != nil {
		return err
	}

	core, err := segmentsCore(cmd)
	if err != nil {
		return err
	}

	ref, required := core.Resolver.Resolve(segYear, body)
	if !required {
		fmt.Fprintf(cmd.OutOrStdout(), "%s in %d is covered by the built-in ephemeris (threshold %d)\n",
			body, segYear, core.Resolver.Threshold())

		return nil
	}

	resident, err := core.Hydrator.Resident(ref)
	if err != nil {
		return err
	}

	locations, err := core.Hydrator.Locations(ref)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Segment:  %s\n", ref.ID())
	fmt.Fprintf(out, "Range:    %d to %d\n", ref.Start, ref.End())
	fmt.Fprintf(out, "Files:    %s\n", strings.Join(ref.Aliases(), ", "))
	fmt.Fprintf(out, "Resident: %t\n", resident)
	fmt.Fprintln(out, "Locations:")

	for _, location := range locations {
		fmt.Fprintf(out, "  %s\n", location)
	}

	return nil
}

func runSegmentsHydrate(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	var refs []segment.Ref

	for _, arg := range args {
		ref, err := segment.ParseID(arg)
		if err != nil {
			return err
		}

		refs = append(refs, ref)
	}

	core, err := segmentsCore(cmd)
	if err != nil {
		return err
	}

	if len(refs) == 0 {
		body, err := swe.ParseBody(segBody)
		if err != nil {
			return err
		}

		ref, required := core.Resolver.Resolve(segYear, body)
		if !required {
			fmt.Fprintf(cmd.OutOrStdout(), "%s in %d needs no segment\n", body, segYear)
			return nil
		}

		refs = append(refs, ref)
	}

	return hydrateAll(cmd, core, refs, 1)
}

func runSegmentsPrefetch(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	if segTo < segFrom {
		return fmt.Errorf("--to %d is before --from %d", segTo, segFrom)
	}

	bodies := swe.Bodies()

	if len(segBodies) > 0 {
		bodies = bodies[:0:0]

		for _, name := range segBodies {
			body, err := swe.ParseBody(name)
			if err != nil {
				return err
			}

			bodies = append(bodies, body)
		}
	}

	core, err := segmentsCore(cmd)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{})

	var refs []segment.Ref

	for _, body := range bodies {
		for _, ref := range core.Resolver.Span(segFrom, segTo, body) {
			if _, ok := seen[ref.ID()]; ok {
				continue
			}

			seen[ref.ID()] = struct{}{}
			refs = append(refs, ref)
		}
	}

	if len(refs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No segments needed for this range")
		return nil
	}

	return hydrateAll(cmd, core, refs, segConcurrency)
}

// hydrateAll ensures every ref with up to limit downloads in flight and
// prints one line per segment.
func hydrateAll(cmd *cobra.Command, core *service.Core, refs []segment.Ref, limit int) error {
	outcomes := make([]hydrator.Outcome, len(refs))
	errs := make([]error, len(refs))

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(max(limit, 1))

	for i, ref := range refs {
		g.Go(func() error {
			outcomes[i], errs[i] = core.Hydrator.Ensure(ctx, ref)
			return nil
		})
	}

	_ = g.Wait()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SEGMENT\tSOURCE\tBYTES\tLOCATION")

	failed := 0

	for i, ref := range refs {
		if errs[i] != nil {
			failed++

			logger.WithError(errs[i]).WithFields(logrus.Fields{"segment": ref.ID()}).Debug("Hydration failed")
			_, _ = fmt.Fprintf(w, "%s\tfailed\t-\t%v\n", ref.ID(), errs[i])

			continue
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", ref.ID(), outcomes[i].Source, outcomes[i].Bytes, outcomes[i].Location)
	}

	if err := w.Flush(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d segment(s) could not be hydrated", failed, len(refs))
	}

	return nil
}

func runSegmentsManifest(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	core, err := segmentsCore(cmd)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FILE\tRANGE\tSOURCE\tBYTES\tHYDRATED")

	for _, entry := range core.Hydrator.Manifest().Files {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			entry.File, entry.Range, entry.Source, entry.Bytes, entry.HydratedAt.Format("2006-01-02 15:04:05"))
	}

	return w.Flush()
}
