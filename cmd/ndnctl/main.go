// Command ndnctl is a thin CLI driver over the NDN storage core, grounded
// on cmd/geth's command/flag conventions (urfave/cli/v2) and logging setup
// (github.com/ethereum/go-ethereum/log).
package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/buckyos/ndn-core/chunkstore"
	"github.com/buckyos/ndn-core/config"
	"github.com/buckyos/ndn-core/merkle"
	"github.com/buckyos/ndn-core/ndnclient"
	"github.com/buckyos/ndn-core/ndnhash"
	"github.com/buckyos/ndn-core/obj"
)

var configFlag = &cli.StringFlag{
	Name:  "config",
	Value: "ndnctl.toml",
	Usage: "path to ndnctl's TOML configuration file",
}

func main() {
	app := &cli.App{
		Name:  "ndnctl",
		Usage: "drive the NDN content-addressed storage core from the command line",
		Flags: []cli.Flag{configFlag},
		Commands: []*cli.Command{
			putCommand,
			getCommand,
			verifyCommand,
			mtreeBuildCommand,
			mtreeVerifyCommand,
			pullCommand,
			pushCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Crit("ndnctl failed", "err", err)
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	path := c.String("config")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}

func openStore(cfg config.Config) (chunkstore.Store, error) {
	var base chunkstore.Store
	var err error
	switch cfg.Store.Backend {
	case "badger":
		base, err = chunkstore.OpenBadgerStore(cfg.Store.Path)
	case "mem":
		base = chunkstore.NewMemStore()
	default:
		base, err = chunkstore.OpenDiskStore(cfg.Store.Path)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Store.CacheSize <= 0 {
		return base, nil
	}
	return chunkstore.NewCachedStore(base, cfg.Store.CacheSize)
}

var putCommand = &cli.Command{
	Name:  "put",
	Usage: "stream stdin into the configured chunk store",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		w, err := store.OpenWriter(obj.HashMethodSha256, nil)
		if err != nil {
			return err
		}
		if _, err := io.Copy(w, os.Stdin); err != nil {
			w.Abort()
			return err
		}
		id, err := w.Complete(nil)
		if err != nil {
			return err
		}
		fmt.Println(id.String())
		return nil
	},
}

var getCommand = &cli.Command{
	Name:      "get",
	Usage:     "stream a chunk to stdout",
	ArgsUsage: "<chunk-id>",
	Action: func(c *cli.Context) error {
		if c.Args().Len() != 1 {
			return cli.Exit("usage: ndnctl get <chunk-id>", 1)
		}
		id, err := obj.Parse(c.Args().First())
		if err != nil {
			return err
		}
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		chunkId, err := obj.FromObjId(id)
		if err != nil {
			return err
		}
		r, err := store.OpenReader(chunkId)
		if err != nil {
			return err
		}
		defer r.Close()
		_, err = io.Copy(os.Stdout, r)
		return err
	},
}

var verifyCommand = &cli.Command{
	Name:      "verify",
	Usage:     "recompute and check a chunk's hash against its claimed id",
	ArgsUsage: "<chunk-id>",
	Action: func(c *cli.Context) error {
		if c.Args().Len() != 1 {
			return cli.Exit("usage: ndnctl verify <chunk-id>", 1)
		}
		id, err := obj.Parse(c.Args().First())
		if err != nil {
			return err
		}
		chunkId, err := obj.FromObjId(id)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		r, err := store.OpenReader(chunkId)
		if err != nil {
			return err
		}
		defer r.Close()
		digest, err := ndnhash.StreamHash(r)
		if err != nil {
			return err
		}
		if bytes.Equal(digest, chunkId.GetHash()) {
			fmt.Println("ok")
			return nil
		}
		return cli.Exit("hash mismatch", 1)
	},
}

var mtreeBuildCommand = &cli.Command{
	Name:  "mtree-build",
	Usage: "build a merkle tree over raw 32-byte leaf hashes concatenated on stdin",
	Action: func(c *cli.Context) error {
		// leaves are expected pre-hashed (32 raw bytes each) concatenated
		// on stdin; this keeps the CLI a thin driver rather than a second
		// hashing implementation. data_size/leaf_size are recorded as
		// leafCount*32 since the CLI never sees the original chunked data.
		buf, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		const leafSize = 32
		leafCount := len(buf) / leafSize
		b := merkle.NewBuilder(uint64(leafCount)*leafSize, leafSize, obj.HashMethodSha256)
		for i := 0; i+leafSize <= len(buf); i += leafSize {
			if err := b.AppendLeafHashes(buf[i : i+leafSize]); err != nil {
				return err
			}
		}
		var out bytes.Buffer
		t, err := b.Finalize(&out)
		if err != nil {
			return err
		}
		if _, err := os.Stdout.Write(out.Bytes()); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "root:", obj.NewByRaw(obj.ObjTypeMtree, t.Root()).String())
		return nil
	},
}

var mtreeVerifyCommand = &cli.Command{
	Name:      "mtree-verify",
	Usage:     "verify a leaf index against a merkle tree file on stdin",
	ArgsUsage: "<leaf-index>",
	Action: func(c *cli.Context) error {
		t, err := merkle.Load(os.Stdin, true)
		if err != nil {
			return err
		}
		var index int
		if _, err := fmt.Sscanf(c.Args().First(), "%d", &index); err != nil {
			return err
		}
		proof, err := t.ProofPath(index)
		if err != nil {
			return err
		}
		if merkle.Verify(proof, t.Root()) {
			fmt.Println("ok")
			return nil
		}
		return cli.Exit("proof verification failed", 1)
	},
}

var pullCommand = &cli.Command{
	Name:      "pull",
	Usage:     "pull a chunk from the remote configured by client.base_url",
	ArgsUsage: "<chunk-id>",
	Action: func(c *cli.Context) error {
		id, err := obj.Parse(c.Args().First())
		if err != nil {
			return err
		}
		chunkId, err := obj.FromObjId(id)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		client := ndnclient.New(store)
		n, err := client.PullChunk(c.Context, cfg.Client.BaseURL, chunkId)
		if err != nil {
			return err
		}
		fmt.Println("pulled", n, "bytes")
		return nil
	},
}

var pushCommand = &cli.Command{
	Name:      "push",
	Usage:     "push a locally stored chunk to the remote configured by client.base_url",
	ArgsUsage: "<chunk-id>",
	Action: func(c *cli.Context) error {
		id, err := obj.Parse(c.Args().First())
		if err != nil {
			return err
		}
		chunkId, err := obj.FromObjId(id)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		client := ndnclient.New(store)
		if err := client.PushChunk(c.Context, cfg.Client.BaseURL, chunkId); err != nil {
			return err
		}
		fmt.Println("pushed")
		return nil
	},
}
