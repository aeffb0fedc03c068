package bot

// User-facing copy. The audience is Indonesian; the wording is part of the
// bot's product surface and is kept verbatim.

const (
	msgAcknowledge = "Mohon maaf atas ketidaknyamanan yang terjadi 🙏. Terima kasih atas laporanya! Laporanmu sudah masuk ke antrian dan akan segera kami proses. Harap menunggu ya, QFolks!"

	msgDeferred = "Saat ini bot tidak dapat menindaklanjuti issue melalui kolom komentar. Informasi terkait bug/issue/feedback tersebut sudah kami terima dan sedang diproses oleh tim kami. Pembaruan dan respon akan disampaikan oleh tim kami setelah ada perkembangan lebih lanjut. Terimakasih."

	msgRestricted = "PQF command not allowed in this channel."

	msgAlreadyLogged = "<@%s> Thread ini sudah pernah dianalisis dan dicatat di spreadsheet."

	msgQueued = "Laporanmu sudah masuk ke list PQF di sheet %s untuk proses tindak lanjut, ya QFolks!"

	msgNoThread = "<@%s> Tidak dapat mengambil data thread. Pastikan bot dipanggil dalam sebuah thread."

	msgManualFollowup = "<@%s>Saat ini bot tidak dapat menindaklanjuti issue melalui kolom komentar.Kami sudah mencatat informasi ini dan akan menindaklanjutinya secara manual. Terima kasih atas kesabarannya!"

	msgUpdateFailed = "<@%s> Gagal update kolom *%s* pada sheet *%s*."

	msgTicketCreated = "Ticket created: %s"

	msgResolutionStatus = "Halo %s 👋\n\nLaporan yang anda sampaikan sudah selesai direproduksi dan dianalisis.\nSolusinya juga sudah ditemukan dan saat ini sedang dalam tahap pengerjaan.\nSTATUS: 🚧 On Progress - Dev Team.\nKami akan memberikan informasi selanjutnya setelah proses pengerjaan selesai.Terima kasih atas kesabarannya! 🙏\n\nSalam,\nTim Profeat"

	msgResolveStatus = "Halo %s 👋\n\nLaporan telah terselesaikan dan perbaikan sudah diimplementasikan serta aktif di sistem! 🚀\nApabila masih ditemukan kendala setelah implementasi, silakan informasikan kembali.\nTerima kasih atas laporan serta kolaborasinya 🙏.\n\nSalam,\nTim Profeat"
)
