// Package clientcli is a client library for hubstore hubs.
//
// It uploads, lists and reads objects in the namespace controlled by a
// signing key. Write requests carry a bearer token signed over the hub's
// challenge text, which the client fetches from /hub_info once and caches.
// Profiles in ~/.hubstore/config.yaml hold one endpoint and key each.
//
// # Basic Usage
//
//	key, err := clientcli.GenerateKey("ed25519")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := clientcli.New(&clientcli.Config{
//		Endpoint:   "http://localhost:3000",
//		PrivateKey: key.PrivateKey,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	results, err := client.Upload(ctx, clientcli.UploadOptions{
//		LocalPath:  "./file.txt",
//		RemotePath: "documents/file.txt",
//	})
//
// # Profile Configuration
//
//	configFile, err := clientcli.LoadConfigFile(clientcli.DefaultConfigPath())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	profile, err := configFile.GetProfile("production")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := clientcli.New(clientcli.ConfigFromProfile(profile))
//
// # Output Formatting
//
//	formatter := clientcli.NewFormatter(jsonOutput, quiet)
//	formatter.FormatUpload(os.Stdout, results)
package clientcli
